package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Inspect and manage platform connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's connections",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectionsList,
}

var connectionsDisconnectCmd = &cobra.Command{
	Use:   "disconnect <user-id> <connection-id>",
	Short: "Disconnect one connection",
	Args:  cobra.ExactArgs(2),
	RunE:  runConnectionsDisconnect,
}

var connectionsPurgeCmd = &cobra.Command{
	Use:   "purge <user-id> <platform>",
	Short: "Delete a user's inactive connections for a platform",
	Args:  cobra.ExactArgs(2),
	RunE:  runConnectionsPurge,
}

func init() {
	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsDisconnectCmd)
	connectionsCmd.AddCommand(connectionsPurgeCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func runConnectionsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	conns, err := a.connections.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		cmd.Println(mutedStyle.Render("No connections for " + args[0]))
		return nil
	}

	cmd.Print(renderConnections(conns))
	return nil
}

func renderConnections(conns []domain.Connection) string {
	headers := []string{"ID", "PLATFORM", "ACCOUNT", "FOLLOWERS", "STATUS", "EXPIRES", "CONNECTED"}
	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		account := c.DisplayName
		if c.DisplayHandle != "" {
			account += " " + c.DisplayHandle
		}
		if account == "" {
			account = c.ExternalAccountID
		}
		status := string(c.Status)
		if !c.IsActive && c.Status == domain.ConnectionActive {
			status = "inactive"
		}
		rows = append(rows, []string{
			c.ID,
			c.Platform.DisplayName(),
			account,
			strconv.FormatInt(c.FollowerCount, 10),
			status,
			formatExpiry(c.TokenExpiresAt),
			c.ConnectedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	return renderTable(headers, rows, func(row, col int) lipgloss.Style {
		if col == 4 {
			return statusStyle(conns[row])
		}
		return lipgloss.NewStyle()
	})
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Until(t)
	if d <= 0 {
		return "expired"
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("in %dh", int(d.Hours()))
	}
	return fmt.Sprintf("in %dd", int(d.Hours()/24))
}

func runConnectionsDisconnect(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connections.Disconnect(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("Connection %s disconnected.\n", args[1])
	return nil
}

func runConnectionsPurge(cmd *cobra.Command, args []string) error {
	platform, err := domain.ParsePlatform(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.connections.PurgeInactive(cmd.Context(), args[0], platform)
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d inactive %s connection(s).\n", n, platform.DisplayName())
	return nil
}
