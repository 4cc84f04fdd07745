// Package events publishes what happens at the kiosk (commands, stage
// changes, recording and archive results) to an MQTT broker for remote
// monitoring. Publishing is best effort and never blocks the controller.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pitabwire/inspector/internal/config"
)

// Kind names an event and is the last topic segment it is published on.
type Kind string

const (
	KindCommand   Kind = "command"
	KindStage     Kind = "stage"
	KindRecording Kind = "recording"
	KindArchive   Kind = "archive"
)

// Event is one published message.
type Event struct {
	Kind    Kind      `json:"kind" msgpack:"kind"`
	At      time.Time `json:"at" msgpack:"at"`
	Device  string    `json:"device" msgpack:"device"`
	Source  string    `json:"source,omitempty" msgpack:"source,omitempty"`
	Command string    `json:"command,omitempty" msgpack:"command,omitempty"`
	Outcome string    `json:"outcome,omitempty" msgpack:"outcome,omitempty"`
	Stage   string    `json:"stage,omitempty" msgpack:"stage,omitempty"`
	State   string    `json:"state,omitempty" msgpack:"state,omitempty"`
	Result  string    `json:"result,omitempty" msgpack:"result,omitempty"`
}

// Encoder turns an event into a message payload.
type Encoder func(Event) ([]byte, error)

// EncodeJSON encodes ev as JSON.
func EncodeJSON(ev Event) ([]byte, error) { return json.Marshal(ev) }

// EncodeMsgpack encodes ev as MessagePack.
func EncodeMsgpack(ev Event) ([]byte, error) { return msgpack.Marshal(ev) }

// EncoderFor returns the encoder for a configured encoding name.
func EncoderFor(name string) (Encoder, error) {
	switch name {
	case config.EncodingJSON, "":
		return EncodeJSON, nil
	case config.EncodingMsgpack:
		return EncodeMsgpack, nil
	default:
		return nil, fmt.Errorf("events: unknown encoding %q", name)
	}
}
