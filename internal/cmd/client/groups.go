package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/rzbill/spool/internal/codec"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type groupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

func groupPath(group, suffix string) string {
	return "/v1/groups/" + url.PathEscape(group) + suffix
}

// newGroupsCommand constructs the `groups` subcommand.
func newGroupsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List configured groups with their stored counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Groups []groupCount `json:"groups"`
			}
			if err := callAPI(cmd.Context(), baseURL(), http.MethodGet, "/v1/groups", nil, &out); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "GROUP\tCOUNT")
			for _, g := range out.Groups {
				_, _ = fmt.Fprintf(tw, "%s\t%d\n", g.Group, g.Count)
			}
			return tw.Flush()
		},
	}
}

// newCountCommand constructs the `count` subcommand.
func newCountCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "count <group>",
		Short: "Print the number of stored records in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out groupCount
			if err := callAPI(cmd.Context(), baseURL(), http.MethodGet, groupPath(args[0], "/count"), nil, &out); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.Count)
			return nil
		},
	}
}

// newPutCommand constructs the `put` subcommand.
func newPutCommand(baseURL BaseURLFunc) *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <group>",
		Short: "Store one record in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			payload, _ := cmd.Flags().GetString("payload")
			attrs, _ := cmd.Flags().GetStringToString("attr")
			if typ == "" {
				return errors.New("--type is required")
			}
			rec := codec.Record{Type: typ, Attributes: attrs}
			if payload != "" {
				rec.Payload = []byte(payload)
			}
			if err := callAPI(cmd.Context(), baseURL(), http.MethodPost, groupPath(args[0], "/records"), rec, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	putCmd.Flags().String("type", "", "Record type")
	putCmd.Flags().String("payload", "", "Record payload (raw text)")
	putCmd.Flags().StringToString("attr", nil, "Attributes as key=value (repeatable)")
	return putCmd
}

// newFlushCommand constructs the `flush` subcommand.
func newFlushCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "flush <group>",
		Short: "Send a group's records upstream now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Sent int `json:"sent"`
			}
			if err := callAPI(cmd.Context(), baseURL(), http.MethodPost, groupPath(args[0], "/flush"), nil, &out); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(out)
		},
	}
}

// newPurgeCommand constructs the `purge` subcommand.
func newPurgeCommand(baseURL BaseURLFunc) *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge <group>",
		Short: "Delete every record in a group (requires --confirm)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, _ := cmd.Flags().GetBool("confirm"); !ok {
				return errors.New("refusing to purge without --confirm")
			}
			if err := callAPI(cmd.Context(), baseURL(), http.MethodDelete, groupPath(args[0], ""), nil, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	purgeCmd.Flags().Bool("confirm", false, "Confirm deletion")
	return purgeCmd
}

// newClearCommand constructs the `clear` subcommand.
func newClearCommand(baseURL BaseURLFunc) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored record (requires --confirm)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ok, _ := cmd.Flags().GetBool("confirm"); !ok {
				return errors.New("refusing to clear without --confirm")
			}
			if err := callAPI(cmd.Context(), baseURL(), http.MethodDelete, "/v1/records", nil, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	clearCmd.Flags().Bool("confirm", false, "Confirm deletion")
	return clearCmd
}

// newHealthCommand constructs the `health` subcommand. It queries the gRPC
// health service.
func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHealthClient(func(c healthpb.HealthClient) error {
				res, err := c.Check(cmd.Context(), &healthpb.HealthCheckRequest{})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", res.GetStatus().String())
				if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
					return errors.New("server is not serving")
				}
				return nil
			})
		},
	}
}
