package chatroom

import (
	"time"

	"github.com/google/uuid"
)

type Resolution struct {
	Room  ChatRoom
	IsNew bool
}

// Resolve finds the room for the truncated second of videoCurrentTime or
// builds a new one. An existing room is returned as is: the first frame
// captured for a second stays authoritative. rooms is never modified.
func Resolve(rooms []ChatRoom, frame string, frameTime time.Time, videoCurrentTime float64) (Resolution, error) {
	if !ValidVideoTime(videoCurrentTime) {
		return Resolution{}, ErrInvalidVideoTime
	}

	if room, ok := FindByBucket(rooms, videoCurrentTime); ok {
		return Resolution{Room: room, IsNew: false}, nil
	}

	return Resolution{Room: newRoom(frame, frameTime, videoCurrentTime), IsNew: true}, nil
}

func newRoom(frame string, frameTime time.Time, videoCurrentTime float64) ChatRoom {
	return ChatRoom{
		ID:   uuid.NewString(),
		Name: FormatVideoTime(videoCurrentTime),
		Messages: []Message{
			{
				ID:        1,
				Text:      SeedMessage,
				Sender:    SenderAI,
				Timestamp: frameTime,
			},
		},
		CapturedFrame:    frame,
		FrameTime:        &frameTime,
		VideoCurrentTime: &videoCurrentTime,
	}
}
