package controller

import (
	"github.com/framechat/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.OnError(c.handleWSError)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// playback
	wsrouter.Handle(mux, "SEEKING", c.handleSeeking)
	wsrouter.Handle(mux, "SEEKED", c.handleSeeked)
	wsrouter.Handle(mux, "PAUSE", c.handlePause)
	wsrouter.Handle(mux, "PLAY", c.handlePlay)
	wsrouter.Handle(mux, "LOAD_VIDEO", c.handleLoadVideo)

	// chat
	wsrouter.Handle(mux, "SEND_MESSAGE", c.handleSendMessage)
	wsrouter.Handle(mux, "SWITCH_ROOM", c.handleSwitchRoom)
	wsrouter.Handle(mux, "DELETE_ROOM", c.handleDeleteRoom)

	return mux
}
