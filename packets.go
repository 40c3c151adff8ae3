package main

import "encoding/json"

// Client -> Server packet types
const (
	MsgConnect      = "connect"
	MsgMove         = "move"
	MsgSkill        = "skill"
	MsgGetGameState = "get_game_state"
	MsgPing         = "ping" // either direction; server replies pong
)

// Server -> Client packet types
const (
	MsgPlayerID      = "player_id"
	MsgGameState     = "game_state"
	MsgUsernameTaken = "username_taken"
	MsgServerFull    = "server_full"
	MsgPong          = "pong"
)

// Packet is one wire message. Every variant is a flat JSON object
// carrying a "type" discriminator next to its fields.
type Packet interface {
	PacketType() string
}

// ConnectPacket opens the handshake with the desired display name
type ConnectPacket struct {
	Name string `json:"name"`
}

// MovePacket is a direction vector; the server scales it by the
// player's velocity and clamps the result to the world bounds.
type MovePacket struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// SkillPacket activates the named skill for its configured duration
type SkillPacket struct {
	SkillName string `json:"skill_name"`
}

// GetGameStatePacket requests a full snapshot
type GetGameStatePacket struct{}

// PlayerIDPacket confirms registration and carries the assigned id
type PlayerIDPacket struct {
	PlayerID string `json:"player_id"`
}

// GameStatePacket is the full world snapshot
type GameStatePacket struct {
	Balls    []BallState            `json:"balls"`
	Players  map[string]PlayerState `json:"players"`
	GameTime float64                `json:"game_time"`
}

// UsernameTakenPacket rejects a handshake whose name is in use
type UsernameTakenPacket struct {
	Message string `json:"message"`
}

// ServerFullPacket rejects a connection over the global cap
type ServerFullPacket struct {
	Message string `json:"message"`
}

// PingPacket is a liveness probe; PongPacket answers it
type PingPacket struct{}
type PongPacket struct{}

func (ConnectPacket) PacketType() string       { return MsgConnect }
func (MovePacket) PacketType() string          { return MsgMove }
func (SkillPacket) PacketType() string         { return MsgSkill }
func (GetGameStatePacket) PacketType() string  { return MsgGetGameState }
func (PlayerIDPacket) PacketType() string      { return MsgPlayerID }
func (GameStatePacket) PacketType() string     { return MsgGameState }
func (UsernameTakenPacket) PacketType() string { return MsgUsernameTaken }
func (ServerFullPacket) PacketType() string    { return MsgServerFull }
func (PingPacket) PacketType() string          { return MsgPing }
func (PongPacket) PacketType() string          { return MsgPong }

// BallState is one food ball in a snapshot
type BallState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Color  Color   `json:"color"`
}

// PlayerState is one player entry in a snapshot, keyed by id
type PlayerState struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Radius           float64 `json:"radius"`
	Score            float64 `json:"score"`
	Color            Color   `json:"color"`
	Age              float64 `json:"age"`
	GrowthPercentage float64 `json:"growth_percentage"`
	PushActive       bool    `json:"push_skill_active"`
	PushRadius       float64 `json:"push_radius"`
	PullActive       bool    `json:"pull_skill_active"`
	PullRadius       float64 `json:"pull_radius"`
}

// requiredFields lists the keys a decoded packet must carry.
// Absence is a DecodeError, not a zero value.
var requiredFields = map[string][]string{
	MsgConnect:       {"name"},
	MsgMove:          {"dx", "dy"},
	MsgSkill:         {"skill_name"},
	MsgPlayerID:      {"player_id"},
	MsgGameState:     {"balls", "players", "game_time"},
	MsgUsernameTaken: {"message"},
	MsgServerFull:    {"message"},
}

// EncodePacket marshals p as a flat JSON object with its "type" tag spliced
// in front of the variant's own fields. Every variant marshals to an object,
// so the splice is safe.
func EncodePacket(p Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	head := `{"type":"` + p.PacketType() + `"`
	if len(body) <= 2 { // fieldless variant, body is {}
		return []byte(head + "}"), nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// DecodePacket parses one wire payload into its packet variant.
// A missing or unknown "type" tag is a ProtocolError; a known packet with
// absent or malformed required fields is a DecodeError. No defaults are
// ever invented for the tag.
func DecodePacket(data []byte) (Packet, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ProtocolError{Reason: "payload is not a JSON object"}
	}
	rawType, ok := fields["type"]
	if !ok {
		return nil, &ProtocolError{Reason: "missing packet type"}
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return nil, &ProtocolError{Reason: "packet type is not a string"}
	}
	for _, f := range requiredFields[typ] {
		if _, ok := fields[f]; !ok {
			return nil, &DecodeError{Type: typ, Reason: "missing field " + f}
		}
	}

	var (
		p   Packet
		err error
	)
	switch typ {
	case MsgConnect:
		var v ConnectPacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgMove:
		var v MovePacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgSkill:
		var v SkillPacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgGetGameState:
		p = GetGameStatePacket{}
	case MsgPlayerID:
		var v PlayerIDPacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgGameState:
		var v GameStatePacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgUsernameTaken:
		var v UsernameTakenPacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgServerFull:
		var v ServerFullPacket
		err = json.Unmarshal(data, &v)
		p = v
	case MsgPing:
		p = PingPacket{}
	case MsgPong:
		p = PongPacket{}
	default:
		return nil, &ProtocolError{Reason: "unknown packet type " + typ}
	}
	if err != nil {
		return nil, &DecodeError{Type: typ, Reason: err.Error()}
	}
	return p, nil
}
