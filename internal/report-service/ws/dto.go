package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Anchor: âncora acompanhada; "*" recebe todas as execuções
type ClientMsg struct {
	Type   string `json:"type"`
	Anchor string `json:"anchor"`
}

// RunUpdate é o payload repassado do Redis Pub/Sub aos clientes
type RunUpdate struct {
	Anchor  string          `json:"anchor"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}
