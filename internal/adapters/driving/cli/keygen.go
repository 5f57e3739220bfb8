package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/config/file"
	"github.com/custodia-labs/socialrelay/internal/adapters/driven/crypto"
)

const cipherKeyConfigKey = "cipher.key"

var (
	keygenWrite bool
	keygenForce bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a token cipher key",
	Long: `Generates a random 32-byte key for token encryption and prints it base64
encoded. Set it as SOCIALRELAY_CIPHER_KEY or pass --write to store it in the
config file.

Changing the key makes every stored token unreadable; affected users must
reconnect. --write refuses to replace an existing key unless --force is set.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenWrite, "write", false, "store the key in the config file")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "replace an existing key when used with --write")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if !keygenWrite {
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	}

	store, err := file.NewConfigStore(cfgFile)
	if err != nil {
		return err
	}
	if store.GetString(cipherKeyConfigKey) != "" && !keygenForce {
		return errors.New("config file already has a cipher key; use --force to replace it")
	}
	if err := store.Set(cipherKeyConfigKey, key); err != nil {
		return err
	}
	cmd.Printf("Cipher key written to %s\n", store.Path())
	return nil
}
