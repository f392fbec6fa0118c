package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait 单次写帧的超时
const writeWait = 10 * time.Second

// Connection 单条WebSocket连接的句柄
// 写锁是每条连接自己的，慢客户端只阻塞自己，不影响其他连接
type Connection struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// writeMessage 串行写单帧，gorilla的连接不允许并发写
func (c *Connection) writeMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Connection) close() error {
	return c.ws.Close()
}

// ConnectionRegistry 本进程的WebSocket连接表
// 同一用户允许多条连接，按connID区分
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]map[string]*Connection // userID -> connID -> conn
}

// NewConnectionRegistry 创建连接表
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]map[string]*Connection),
	}
}

// Add 登记一条连接
func (r *ConnectionRegistry) Add(userID, connID string, ws *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connections[userID] == nil {
		r.connections[userID] = make(map[string]*Connection)
	}
	r.connections[userID][connID] = &Connection{ws: ws}
}

// Remove 摘除一条连接，返回句柄是否确实在表中
// 同一connID的并发摘除只有一方返回true，下线计数以此去重
func (r *ConnectionRegistry) Remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.connections[userID]
	if conns == nil {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.connections, userID)
	}
	return true
}

// ConnectionsOf 拷贝某用户的全部连接
func (r *ConnectionRegistry) ConnectionsOf(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.connections[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn)
	}
	return out
}

// AllConnections 拷贝全部连接
func (r *ConnectionRegistry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, conns := range r.connections {
		for _, conn := range conns {
			out = append(out, conn)
		}
	}
	return out
}

// Snapshot 拷贝整个连接表
func (r *ConnectionRegistry) Snapshot() map[string]map[string]*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]*Connection, len(r.connections))
	for userID, conns := range r.connections {
		copied := make(map[string]*Connection, len(conns))
		for connID, conn := range conns {
			copied[connID] = conn
		}
		out[userID] = copied
	}
	return out
}

// UserIDs 返回本进程当前有连接的用户
func (r *ConnectionRegistry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connections))
	for userID := range r.connections {
		out = append(out, userID)
	}
	return out
}

// HasUser 判断用户在本进程是否有连接
func (r *ConnectionRegistry) HasUser(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[userID]) > 0
}
