package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/auth"
	"github.com/oakmontrealty/voicrm-sydney/internal/rbac"
)

var agentTokenCmd = &cobra.Command{
	Use:   "agent-token <agent-id>",
	Short: "Mint a dashboard session for an agent profile",
	Long:  "Signs an access and refresh token with the API's JWT secret (VOICRM_AUTH_JWT_SECRET). Useful for kiosks and smoke tests.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		m, err := auth.NewManager(authConfig())
		if err != nil {
			return err
		}
		s, err := m.Issue(time.Now(), auth.Identity{AgentID: args[0], Role: role})
		if err != nil {
			return err
		}
		log.Debug("agent session issued", zap.String("agent_id", args[0]), zap.String("role", role))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

func init() {
	agentTokenCmd.Flags().String("role", rbac.RoleAgent, "role claim (agent or admin)")
	rootCmd.AddCommand(agentTokenCmd)
}
