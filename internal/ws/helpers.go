package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	kindChats        = "chats"
	kindConversation = "conversation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newConnID() string {
	return uuid.NewString()
}

func wsRoutingKey(kind string) string {
	return "ws_events." + kind
}
