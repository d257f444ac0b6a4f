package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera un secreto aleatorio para STAGEGATE_TOKEN_SECRET / STAGEGATE_OTP_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < 32 {
				return fmt.Errorf("--bytes debe ser >= 32")
			}
			b := make([]byte, size)
			if _, err := rand.Read(b); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.RawURLEncoding.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "cantidad de bytes aleatorios")
	return cmd
}
