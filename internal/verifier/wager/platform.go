package wager

import (
	"context"

	"github.com/radieske/rebate-verifier/internal/verifier/platform"
)

type clientPlatform struct {
	*platform.Client
}

// FromClient adapta o cliente da API para a simulação
func FromClient(c *platform.Client) Platform {
	return clientPlatform{Client: c}
}

func (p clientPlatform) Open(ctx context.Context, username, password string) (Account, error) {
	s, err := p.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s, nil
}
