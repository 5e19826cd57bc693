package inmemory

import (
	"log/slog"
	"sync"

	"github.com/framechat/server/internal/repository/connection"
	"github.com/gorilla/websocket"
)

type entry struct {
	conn   *websocket.Conn
	userID string
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]*entry
	userList map[string]map[string]struct{}
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*entry),
		userList: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, playerID, userID string) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "player_id", playerID, "user_id", userID)
	if r.connList[conn] != "" || r.idList[playerID] != nil {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = playerID
	r.idList[playerID] = &entry{conn: conn, userID: userID}
	if r.userList[userID] == nil {
		r.userList[userID] = make(map[string]struct{})
	}
	r.userList[userID][playerID] = struct{}{}

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) RemoveByPlayerID(playerID string) error {
	funcName := "connection.inmemory.RemoveByPlayerID"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "player_id", playerID)
	e, ok := r.idList[playerID]
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(r.connList, e.conn)
	delete(r.idList, playerID)
	delete(r.userList[e.userID], playerID)
	if len(r.userList[e.userID]) == 0 {
		delete(r.userList, e.userID)
	}

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) GetPlayerID(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	playerID, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return playerID, nil
}

func (r *repo) GetPlayerIDsByUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.userList[userID]))
	for id := range r.userList[userID] {
		ids = append(ids, id)
	}

	return ids
}

// Send writes v as JSON to the connection of the player.
func (r *repo) Send(playerID string, v any) error {
	r.mu.RLock()
	e, ok := r.idList[playerID]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.conn.WriteJSON(v)
}
