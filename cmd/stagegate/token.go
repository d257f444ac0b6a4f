package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/stagegate/internal/jwt"
)

type tokenView struct {
	Type      jwt.TokenType     `json:"type"`
	Subject   string            `json:"sub"`
	ID        string            `json:"jti,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	IssuedAt  time.Time         `json:"iat"`
	ExpiresAt time.Time         `json:"exp"`
	Expired   bool              `json:"expired"`
	Verified  *bool             `json:"verified,omitempty"`
}

func newTokenCmd(o *rootOpts) *cobra.Command {
	tok := &cobra.Command{
		Use:   "token",
		Short: "Diagnóstico de tokens",
	}

	var verify bool
	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decodifica un token; con --verify además chequea firma y vigencia",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])
			c, err := jwt.Inspect(raw)
			if err != nil {
				return fmt.Errorf("token ilegible: %w", err)
			}
			v := tokenView{
				Type:      c.Type,
				Subject:   c.Subject,
				ID:        c.ID,
				Payload:   c.Payload,
				IssuedAt:  c.IssuedAt,
				ExpiresAt: c.ExpiresAt,
				Expired:   !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt),
			}
			if verify {
				cfg, err := o.load()
				if err != nil {
					return err
				}
				s, err := jwt.NewSigner([]byte(cfg.Tokens.Secret), cfg.Tokens.Issuer)
				if err != nil {
					return err
				}
				_, ok := s.Validate(raw)
				v.Verified = &ok
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	inspect.Flags().BoolVar(&verify, "verify", false, "verificar con tokens.secret de la config")

	tok.AddCommand(inspect)
	return tok
}
