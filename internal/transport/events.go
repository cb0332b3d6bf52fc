package transport

// Event names the broker's wire vocabulary. These are the contract; the
// encoding carried inside each envelope's payload is plain JSON.
const (
	// Client -> server, request/response via Call.
	EventSendMessage             = "send_message"
	EventSendCommand             = "send_command"
	EventSendNotificationToChat  = "send_notification_to_chat"
	EventCreateChat              = "create_chat"
	EventJoinChat                = "join_chat"
	EventExitChat                = "exit_chat"
	EventDeleteChat              = "delete_chat"
	EventPullMembersIntoChat     = "pull_members_into_chat"
	EventRemoveMemberFromChat    = "remove_member_from_chat"
	EventGetJoinedChats          = "get_joined_chats"
	EventGetCreatedChats         = "get_created_chats"
	EventGetChat                 = "get_chat"
	EventGetChatMembers          = "get_chat_members"
	EventGetMember               = "get_member"
	EventGetMembers              = "get_members"
	EventGetMemberByName         = "get_member_by_name"
	EventGetOnlineMembers        = "get_online_members"
	EventGetChatOnlineMembers    = "get_chat_online_members"
	EventLoadChatMessages        = "load_chat_messages_from_server"
	EventListenInChat            = "listen_in_chat"
	EventUnlistenInChat          = "unlisten_in_chat"
	EventGetListenInChats        = "get_listen_in_chats"
	EventRegisterChatManager     = "register_chat_manager"
	EventLogin                   = "login"

	// Server -> client, pushed and dispatched to registered handlers.
	EventReceiveLoginResponse        = "receive_login_response"
	EventDisconnect                  = "disconnect"
	EventReceiveMessage              = "receive_message"
	EventReceiveCommand              = "receive_command"
	EventNextSpeaker                 = "next_speaker"
	EventReceiveNotificationFromChat = "receive_notification_from_chat"
)

// asyncEvents are dispatched to a freshly spawned worker goroutine so a slow
// handler (one that may call an LLM) never stalls the receive loop. All
// other inbound events execute inline and must return quickly.
var asyncEvents = map[string]bool{
	EventReceiveMessage:              true,
	EventReceiveNotificationFromChat: true,
}

func dispatchAsync(event string) bool {
	return asyncEvents[event]
}
