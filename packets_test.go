package main

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	packets := []Packet{
		ConnectPacket{Name: "alice"},
		ConnectPacket{Name: strings.Repeat("x", MaxNameLength)},
		MovePacket{DX: 1, DY: -0.5},
		MovePacket{DX: 0, DY: 0},
		SkillPacket{SkillName: "push"},
		GetGameStatePacket{},
		PlayerIDPacket{PlayerID: "abc-123"},
		UsernameTakenPacket{Message: "username already taken"},
		ServerFullPacket{Message: "server full"},
		PingPacket{},
		PongPacket{},
		GameStatePacket{
			Balls: []BallState{{X: 1, Y: 2, Radius: 5, Color: Color{10, 20, 30}}},
			Players: map[string]PlayerState{
				"p1": {
					ID: "p1", Name: "bob", X: 100, Y: 200, Radius: 12.5,
					Score: 3, Color: Color{1, 2, 3}, Age: 15, GrowthPercentage: 25,
					PushActive: true, PushRadius: 72.5,
				},
			},
			GameTime: 99.5,
		},
	}

	for _, want := range packets {
		data, err := EncodePacket(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.PacketType(), err)
		}
		got, err := DecodePacket(data)
		if err != nil {
			t.Fatalf("decode %s: %v", want.PacketType(), err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip %s: got %+v, want %+v", want.PacketType(), got, want)
		}
	}
}

func TestEncodeShapeIsFlat(t *testing.T) {
	data, err := EncodePacket(MovePacket{DX: 1, DY: 2})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("encoded packet is not a JSON object: %v", err)
	}
	if m["type"] != "move" {
		t.Errorf("expected type move, got %v", m["type"])
	}
	if m["dx"] != 1.0 || m["dy"] != 2.0 {
		t.Error("fields should sit next to the type tag, not nested")
	}
}

func TestEncodeFieldlessPacket(t *testing.T) {
	data, err := EncodePacket(PingPacket{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"ping"}` {
		t.Errorf("expected bare type object, got %s", data)
	}
}

func TestDecodeTagErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1, 2, 3]`},
		{"not json", `{{{`},
		{"missing type", `{"name": "alice"}`},
		{"type not a string", `{"type": 7}`},
		{"unknown type", `{"type": "teleport"}`},
	}
	for _, tt := range tests {
		_, err := DecodePacket([]byte(tt.raw))
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Errorf("%s: expected ProtocolError, got %v", tt.name, err)
		}
	}
}

func TestDecodeFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"connect without name", `{"type": "connect"}`},
		{"move without dy", `{"type": "move", "dx": 1}`},
		{"move with string dx", `{"type": "move", "dx": "fast", "dy": 0}`},
		{"skill without name", `{"type": "skill"}`},
		{"player_id without id", `{"type": "player_id"}`},
	}
	for _, tt := range tests {
		_, err := DecodePacket([]byte(tt.raw))
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("%s: expected DecodeError, got %v", tt.name, err)
		}
	}
}

func TestDecodeIgnoresExtraFields(t *testing.T) {
	pkt, err := DecodePacket([]byte(`{"type": "move", "dx": 1, "dy": 2, "color": "red"}`))
	if err != nil {
		t.Fatalf("extra fields should not fail decoding: %v", err)
	}
	mv, ok := pkt.(MovePacket)
	if !ok {
		t.Fatalf("expected MovePacket, got %T", pkt)
	}
	if mv.DX != 1 || mv.DY != 2 {
		t.Errorf("expected (1, 2), got (%f, %f)", mv.DX, mv.DY)
	}
}

func TestDecodeNullFieldIsPresent(t *testing.T) {
	// A null value satisfies presence but must decode to the zero value
	pkt, err := DecodePacket([]byte(`{"type": "connect", "name": null}`))
	if err != nil {
		t.Fatalf("null name should decode: %v", err)
	}
	if pkt.(ConnectPacket).Name != "" {
		t.Error("null name should decode to empty string")
	}
}
