package ws

import (
	"errors"
	"sync"
)

var ErrClientNotFound = errors.New("client not found")

// RoomManager tracks which connections are subscribed to which room code.
// A client belongs to at most one broadcast group.
type RoomManager struct {
	clients    map[string]*Client            // clientID -> client
	groups     map[string]map[string]*Client // roomCode -> clientID -> client
	membership map[string]string             // clientID -> roomCode
	mu         sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		membership: make(map[string]string),
	}
}

func (rm *RoomManager) AddClient(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.clients[cl.ID] = cl
}

// RemoveClient drops the client from its group and closes its send buffer.
func (rm *RoomManager) RemoveClient(cl *Client) {
	rm.mu.Lock()
	if _, ok := rm.clients[cl.ID]; ok {
		delete(rm.clients, cl.ID)
		rm.leaveLocked(cl.ID)
	}
	rm.mu.Unlock()

	cl.closeSend()
}

// Subscribe moves the client into roomCode's group and returns the group it
// left, if any.
func (rm *RoomManager) Subscribe(cl *Client, roomCode string) (string, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.clients[cl.ID]; !ok {
		return "", ErrClientNotFound
	}

	previous := rm.leaveLocked(cl.ID)

	group, ok := rm.groups[roomCode]
	if !ok {
		group = make(map[string]*Client)
		rm.groups[roomCode] = group
	}
	group[cl.ID] = cl
	rm.membership[cl.ID] = roomCode

	return previous, nil
}

func (rm *RoomManager) Unsubscribe(cl *Client) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.leaveLocked(cl.ID)
}

func (rm *RoomManager) leaveLocked(clientID string) string {
	roomCode, ok := rm.membership[clientID]
	if !ok {
		return ""
	}
	delete(rm.membership, clientID)

	if group, ok := rm.groups[roomCode]; ok {
		delete(group, clientID)
		if len(group) == 0 {
			delete(rm.groups, roomCode)
		}
	}
	return roomCode
}

func (rm *RoomManager) RoomOf(cl *Client) (string, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	code, ok := rm.membership[cl.ID]
	return code, ok
}

func (rm *RoomManager) GroupSize(roomCode string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.groups[roomCode])
}

func (rm *RoomManager) ClientCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.clients)
}

// BroadcastToRoom offers data to every subscriber without blocking and
// returns the IDs of clients whose buffers were full.
func (rm *RoomManager) BroadcastToRoom(roomCode string, data []byte) (delivered int, dropped []string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for id, cl := range rm.groups[roomCode] {
		if cl.Send(data) {
			delivered++
			continue
		}
		dropped = append(dropped, id)
	}
	return delivered, dropped
}
