package main

import (
	"fmt"
	"strconv"

	"greendrop/internal/client"
	"greendrop/internal/logger"
	"greendrop/internal/service"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func apiClient() *client.Client {
	return client.NewClient(apiAddr, apiToken, logger.Nop())
}

func NewScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "scan",
		Short:   "Search for the valve",
		GroupID: gDevice,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := apiClient().Scan(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Found {
				cmd.Println(res.Message)
				return nil
			}
			cmd.Printf("found %s (%s) rssi %d dBm\n", res.Device.Name, res.Device.ID, res.Device.RSSI)
			return nil
		},
	}
}

func NewConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connect [id]",
		Short:   "Connect to a scanned peripheral",
		GroupID: gDevice,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := apiClient().Connect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s: %s\n", res.Status, deviceLabel(res.Device.Name, res.Device.ID))
			return nil
		},
	}
}

func NewDisconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disconnect",
		Short:   "Release the valve and close the backend session",
		GroupID: gDevice,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient().Disconnect(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("disconnected")
			return nil
		},
	}
}

func NewStatusCommand() *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show link, sensors and irrigation timer",
		GroupID: gDevice,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printStatus(cmd, apiClient(), deviceID)
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id (default: connected or configured device)")
	return cmd
}

func printStatus(cmd *cobra.Command, c *client.Client, deviceID string) error {
	ctx := cmd.Context()
	snap, err := c.Device(ctx)
	if err != nil {
		return err
	}
	switch {
	case snap.Connected != nil:
		cmd.Printf("device:    %s\n", deviceLabel(snap.Connected.Name, snap.Connected.ID))
	case snap.Linked:
		cmd.Println("device:    linked, waiting for first reading")
	default:
		cmd.Println("device:    not connected")
	}

	tv, err := c.Telemetry(ctx, deviceID)
	if err != nil {
		return err
	}
	cmd.Printf("telemetry: %s [%s] humidity %s purity %s\n", tv.Status, tv.Source, pct(tv.Humidity), pct(tv.Purity))

	st, err := c.Timer(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("timer:     %s %s (%d%%)\n", st.Phase, st.Clock, st.Progress)
	return nil
}

func NewHistoryCommand() *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List irrigation history from the backend",
		GroupID: gDevice,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := apiClient().History(cmd.Context(), deviceID)
			if err != nil {
				return err
			}
			cmd.Printf("%-20s %-10s %-16s %8s %8s %8s\n", "DATE", "PLANT", "DEVICE", "MINUTES", "HUMIDITY", "PURITY")
			for _, r := range rows {
				date := "-"
				if !r.Date.IsZero() {
					date = r.Date.Local().Format("2006-01-02 15:04")
				}
				cmd.Printf("%-20s %-10s %-16s %8.0f %7.0f%% %7.0f%%\n", date, r.Plant, r.Device, r.Minutes, r.Humidity, r.Purity)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id (default: connected or configured device)")
	return cmd
}

func NewIrrigateCommand() *cobra.Command {
	var plant string
	cmd := &cobra.Command{
		Use:     "irrigate [minutes]",
		Short:   "Open the valve for a number of minutes",
		GroupID: gIrrigation,
		Long: `Open the valve for a number of minutes.

Without minutes the duration comes from the plant presets (--plant, default plant otherwise).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := service.StartParams{Plant: plant, AutoByPlant: len(args) == 0}
			if len(args) == 1 {
				m, err := strconv.Atoi(args[0])
				if err != nil {
					return pkgerrors.Wrapf(err, "invalid minutes %q", args[0])
				}
				p.DurationMin = m
			}
			res, err := apiClient().Irrigate(cmd.Context(), p)
			if err != nil {
				return err
			}
			if res.State != nil {
				cmd.Printf("irrigating for %s\n", res.State.Clock)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plant, "plant", "", "plant preset to use when no minutes are given")
	return cmd
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop the running irrigation",
		GroupID: gIrrigation,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := apiClient().Stop(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("irrigation stopped")
			return nil
		},
	}
}

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "login",
		Short:   "Hand the backend token (--token) to the daemon",
		GroupID: gSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apiToken == "" {
				return pkgerrors.New("--token is required")
			}
			if err := client.NewClient(apiAddr, "", logger.Nop()).Login(cmd.Context(), apiToken); err != nil {
				return err
			}
			cmd.Println("logged in")
			return nil
		},
	}
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Disconnect the valve and forget the backend token",
		GroupID: gSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient().Logout(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("logged out")
			return nil
		},
	}
}

func deviceLabel(name, id string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 0, 64) + "%"
}
