package bridge

import "encoding/json"

// payloadVersion is the envelope schema version the hook script emits.
// Bumped together with hookScript whenever a record shape changes.
const payloadVersion = 1

type versioned interface {
	version() int
}

// qrPayload is the qr-changed envelope: {"v":1,"code":"..."}.
type qrPayload struct {
	V    int    `json:"v"`
	Code string `json:"code"`
}

func (p *qrPayload) version() int { return p.V }

// eventPayload is the event-emitted envelope:
// {"v":1,"name":"...","data":{...}}.
type eventPayload struct {
	V    int             `json:"v"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

func (p *eventPayload) version() int { return p.V }

// messagePayload is the message-added envelope:
// {"v":1,"message":{...}}.
type messagePayload struct {
	V       int             `json:"v"`
	Message json.RawMessage `json:"message"`
}

func (p *messagePayload) version() int { return p.V }

// hookScript runs inside the page. It forwards QR refreshes, runtime events
// and inbound messages into the exposed host callbacks, each wrapped in a
// version-1 envelope. Installation is idempotent across navigations within
// the same page instance.
const hookScript = `
() => {
	const w = window;
	if (w.__wadriveHooked) return true;
	w.__wadriveHooked = true;

	const V = 1;
	const call = (fn, payload) => {
		try {
			if (typeof w[fn] === 'function') w[fn](payload);
		} catch (e) {}
	};

	// QR challenges render into a div[data-ref] whose attribute holds the
	// opaque code and is rewritten on every refresh.
	const seenRefs = new Set();
	const reportQr = () => {
		const node = document.querySelector('div[data-ref]');
		if (!node) return;
		const code = node.getAttribute('data-ref') || '';
		if (!code || seenRefs.has(code)) return;
		seenRefs.add(code);
		call('` + CallbackQRChanged + `', { v: V, code });
	};
	const qrObserver = new MutationObserver(reportQr);
	qrObserver.observe(document.body || document.documentElement, {
		subtree: true,
		childList: true,
		attributes: true,
		attributeFilter: ['data-ref'],
	});
	reportQr();

	// Once the internal Store is reachable, relay its stream/socket state
	// and message events.
	const bindStore = () => {
		const store = w.Store;
		if (!store || !store.Msg || w.__wadriveStoreBound) return;
		w.__wadriveStoreBound = true;

		if (store.Stream && typeof store.Stream.on === 'function') {
			store.Stream.on('change:displayInfo', () => {
				const info = store.Stream.displayInfo;
				if (info === 'NORMAL') {
					call('` + CallbackEventEmitted + `', { v: V, name: 'ready', data: {} });
				}
			});
		}
		if (store.Conn && typeof store.Conn.on === 'function') {
			store.Conn.on('change:state', () => {
				const state = store.Conn.state;
				if (state === 'TIMEOUT' || state === 'CONFLICT' || state === 'UNPAIRED') {
					call('` + CallbackEventEmitted + `', { v: V, name: 'disconnected', data: { reason: state } });
				}
			});
		}
		store.Msg.on('add', (msg) => {
			if (!msg || !msg.isNewMsg) return;
			call('` + CallbackMessageAdded + `', { v: V, message: {
				id: msg.id && msg.id._serialized || '',
				chatId: msg.from && msg.from._serialized || String(msg.from || ''),
				sender: msg.author && msg.author._serialized || String(msg.author || msg.from || ''),
				body: msg.body || '',
				type: msg.type || 'chat',
				fromMe: !!msg.id && !!msg.id.fromMe,
				t: msg.t || 0,
				mimetype: msg.mimetype || '',
				size: msg.size || 0,
				caption: msg.caption || '',
			}});
		});
	};
	bindStore();
	const storePoll = setInterval(() => {
		bindStore();
		if (w.__wadriveStoreBound) clearInterval(storePoll);
	}, 500);

	return true;
}
`
