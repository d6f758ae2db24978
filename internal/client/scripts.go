package client

// shimScript is the one-time environment setup evaluated on entry to the
// ready state. It resolves the web client's internal module store and
// publishes a small stable API the gateway scripts call, so changes to the
// client's internals concentrate here. Every shim call returns a
// discriminated {ok, error, data} result; the gateway never interprets raw
// internals.
const shimScript = `
() => {
	const w = window;
	if (w.WadriveShim) return true;

	const ok = (data) => ({ ok: true, data });
	const fail = (e) => ({ ok: false, error: String((e && e.message) || e) });
	const store = () => {
		if (!w.Store || !w.Store.Chat) throw new Error('internal store unavailable');
		return w.Store;
	};

	const serializeChat = (chat) => ({
		id: chat.id && chat.id._serialized || String(chat.id || ''),
		name: chat.name || chat.formattedTitle || '',
		isGroup: !!chat.isGroup,
		unreadCount: chat.unreadCount || 0,
		archived: !!chat.archive,
		pinned: !!chat.pin,
		muted: !!(chat.mute && chat.mute.isMuted),
		t: chat.t || 0,
		participants: chat.groupMetadata && chat.groupMetadata.participants
			? chat.groupMetadata.participants.length : 0,
		owner: chat.groupMetadata && chat.groupMetadata.owner
			? chat.groupMetadata.owner._serialized : '',
	});

	const serializeContact = (contact) => ({
		id: contact.id && contact.id._serialized || String(contact.id || ''),
		name: contact.name || contact.pushname || '',
		shortName: contact.shortName || '',
		number: contact.userid || (contact.id && contact.id.user) || '',
		isBusiness: !!contact.isBusiness,
		isBlocked: !!contact.isBlocked,
		isMe: !!contact.isMe,
	});

	const serializeMessage = (msg) => ({
		id: msg.id && msg.id._serialized || '',
		chatId: msg.to && msg.to._serialized || String(msg.to || ''),
		sender: msg.from && msg.from._serialized || String(msg.from || ''),
		body: msg.body || '',
		type: msg.type || 'chat',
		fromMe: true,
		t: msg.t || Math.floor(Date.now() / 1000),
	});

	w.WadriveShim = {
		sendMessage: async (chatId, body) => {
			try {
				const S = store();
				const chat = await S.Chat.find(chatId);
				if (!chat) return fail('unknown chat: ' + chatId);
				const msg = await S.SendMessage.addAndSendMsgToChat(chat, { body });
				return ok(serializeMessage(msg && msg[1] || { to: chat.id, body }));
			} catch (e) {
				return fail(e);
			}
		},
		listChats: () => {
			try {
				return ok(store().Chat.getModelsArray().map(serializeChat));
			} catch (e) {
				return fail(e);
			}
		},
		listContacts: () => {
			try {
				return ok(store().Contact.getModelsArray()
					.filter((contact) => !!contact.isAddressBookContact)
					.map(serializeContact));
			} catch (e) {
				return fail(e);
			}
		},
		setAutoDownload: async (enabled) => {
			try {
				const S = store();
				await S.Settings.setAutoDownloadPhotos(enabled);
				await S.Settings.setAutoDownloadAudio(enabled);
				await S.Settings.setAutoDownloadVideos(enabled);
				await S.Settings.setAutoDownloadDocuments(enabled);
				return ok({ enabled });
			} catch (e) {
				return fail(e);
			}
		},
		setBetaParticipation: async (enabled) => {
			try {
				await store().Settings.setMultiDeviceBetaOptIn(enabled);
				return ok({ enabled });
			} catch (e) {
				return fail(e);
			}
		},
	};
	return true;
}
`

// Gateway call sites. Each delegates into the shim; a missing shim (for
// example after a failed install) reports through the {ok:false} path.
const (
	sendMessageJS = `(chatId, body) => window.WadriveShim
		? window.WadriveShim.sendMessage(chatId, body)
		: { ok: false, error: 'shim not installed' }`

	listChatsJS = `() => window.WadriveShim
		? window.WadriveShim.listChats()
		: { ok: false, error: 'shim not installed' }`

	listContactsJS = `() => window.WadriveShim
		? window.WadriveShim.listContacts()
		: { ok: false, error: 'shim not installed' }`

	setAutoDownloadJS = `(enabled) => window.WadriveShim
		? window.WadriveShim.setAutoDownload(enabled)
		: { ok: false, error: 'shim not installed' }`

	setBetaParticipationJS = `(enabled) => window.WadriveShim
		? window.WadriveShim.setBetaParticipation(enabled)
		: { ok: false, error: 'shim not installed' }`
)
