package pubsub

import (
	"encoding/json"
	"fmt"
)

// Event 总线事件，封闭的类型集合，每个频道对应一个载荷结构
type Event interface {
	EventChannel() Channel
}

// NewMessagePayload 新消息事件
type NewMessagePayload struct {
	ChatID      string   `json:"chatId"`
	MessageID   string   `json:"messageId"`
	SenderID    string   `json:"senderId"`
	ReceiverIDs []string `json:"receiverIds"`
	Text        string   `json:"text"`
	CreatedAt   string   `json:"createdAt"`
}

// MessageUpdatedPayload 消息更新事件
type MessageUpdatedPayload struct {
	ChatID      string   `json:"chatId"`
	MessageID   string   `json:"messageId"`
	SenderID    string   `json:"senderId"`
	ReceiverIDs []string `json:"receiverIds"`
	Text        string   `json:"text"`
	UpdatedAt   string   `json:"updatedAt"`
}

// MessageDeletedPayload 消息删除事件
type MessageDeletedPayload struct {
	MessageID   string   `json:"messageId"`
	ChatID      string   `json:"chatId"`
	UserID      string   `json:"userId,omitempty"`
	ForEveryone bool     `json:"forEveryone"`
	ReceiverIDs []string `json:"receiverIds"`
}

// UserStatusPayload 用户上下线事件
type UserStatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// UserTypingPayload 正在输入事件
type UserTypingPayload struct {
	UserID      string   `json:"userId"`
	ChatID      string   `json:"chatId"`
	IsTyping    bool     `json:"isTyping"`
	ReceiverIDs []string `json:"receiverIds"`
}

// ChatCreatedPayload 会话创建事件，Chat为完整会话对象，总线不关心其内部结构
type ChatCreatedPayload struct {
	Chat        json.RawMessage `json:"chat"`
	UserID      string          `json:"userId,omitempty"`
	ReceiverIDs []string        `json:"receiverIds"`
}

// ChatUpdatedPayload 会话更新事件
type ChatUpdatedPayload struct {
	Chat        json.RawMessage `json:"chat"`
	UserID      string          `json:"userId,omitempty"`
	ReceiverIDs []string        `json:"receiverIds"`
}

// ChatDeletedPayload 会话删除事件
// ReceiverIDs由发布方决定投递范围，通知层不做扩大或收窄
type ChatDeletedPayload struct {
	ChatID      string   `json:"chatId"`
	UserID      string   `json:"userId,omitempty"`
	ReceiverIDs []string `json:"receiverIds"`
}

// NewStoryPayload 新动态事件，Story为完整动态对象
type NewStoryPayload struct {
	UserID      string          `json:"userId"`
	Story       json.RawMessage `json:"story"`
	ReceiverIDs []string        `json:"receiverIds"`
}

// EventChannel 实现Event接口
func (*NewMessagePayload) EventChannel() Channel     { return ChannelNewMessage }
func (*MessageUpdatedPayload) EventChannel() Channel { return ChannelMessageUpdated }
func (*MessageDeletedPayload) EventChannel() Channel { return ChannelMessageDeleted }
func (*UserStatusPayload) EventChannel() Channel     { return ChannelUserStatus }
func (*UserTypingPayload) EventChannel() Channel     { return ChannelUserTyping }
func (*ChatCreatedPayload) EventChannel() Channel    { return ChannelChatCreated }
func (*ChatUpdatedPayload) EventChannel() Channel    { return ChannelChatUpdated }
func (*ChatDeletedPayload) EventChannel() Channel    { return ChannelChatDeleted }
func (*NewStoryPayload) EventChannel() Channel       { return ChannelNewStory }

// DecodeEvent 按频道把原始JSON解码为对应的事件类型
// 唯一允许出现载荷类型分支的地方，通知层拿到的是强类型事件
func DecodeEvent(channel Channel, data []byte) (Event, error) {
	var ev Event
	switch channel {
	case ChannelNewMessage:
		ev = &NewMessagePayload{}
	case ChannelMessageUpdated:
		ev = &MessageUpdatedPayload{}
	case ChannelMessageDeleted:
		ev = &MessageDeletedPayload{}
	case ChannelUserStatus:
		ev = &UserStatusPayload{}
	case ChannelUserTyping:
		ev = &UserTypingPayload{}
	case ChannelChatCreated:
		ev = &ChatCreatedPayload{}
	case ChannelChatUpdated:
		ev = &ChatUpdatedPayload{}
	case ChannelChatDeleted:
		ev = &ChatDeletedPayload{}
	case ChannelNewStory:
		ev = &NewStoryPayload{}
	default:
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", channel, err)
	}
	return ev, nil
}

// EncodeEvent 序列化事件载荷
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.EventChannel(), err)
	}
	return data, nil
}
