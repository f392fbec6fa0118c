package pubsub

// Channel 事件总线频道名
type Channel string

// 固定的频道集合，总线启动时一次性全量订阅
const (
	ChannelNewMessage     Channel = "new_message"
	ChannelMessageUpdated Channel = "message_updated"
	ChannelMessageDeleted Channel = "message_deleted"
	ChannelUserStatus     Channel = "user_status"
	ChannelUserTyping     Channel = "user_typing"
	ChannelChatCreated    Channel = "chat_created"
	ChannelChatUpdated    Channel = "chat_updated"
	ChannelChatDeleted    Channel = "chat_deleted"
	ChannelNewStory       Channel = "new_story"
)

// AllChannels 返回全部频道
func AllChannels() []Channel {
	return []Channel{
		ChannelNewMessage,
		ChannelMessageUpdated,
		ChannelMessageDeleted,
		ChannelUserStatus,
		ChannelUserTyping,
		ChannelChatCreated,
		ChannelChatUpdated,
		ChannelChatDeleted,
		ChannelNewStory,
	}
}

// IsValid 判断是否为已知频道
func (c Channel) IsValid() bool {
	switch c {
	case ChannelNewMessage, ChannelMessageUpdated, ChannelMessageDeleted,
		ChannelUserStatus, ChannelUserTyping,
		ChannelChatCreated, ChannelChatUpdated, ChannelChatDeleted,
		ChannelNewStory:
		return true
	}
	return false
}

func (c Channel) String() string {
	return string(c)
}
