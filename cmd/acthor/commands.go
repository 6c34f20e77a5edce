package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/zberg/go-acthor/pkg/acthor"
)

var (
	targetHost string
	timeout    time.Duration
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&targetHost, "host", "", "Host or IP of the AC THOR")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "Connect and request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	overrideCmd.Flags().String("mode", "", "Override mode: override, replace or minimum")

	monitorCmd.Flags().String("config", "", "Path to the monitor config file")

	readCmd.Flags().Bool("list", false, "List known register names")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(setPowerCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(boostCmd)
	rootCmd.AddCommand(monitorCmd)
}

func clientOptions() []acthor.ClientOption {
	opts := []acthor.ClientOption{acthor.WithTimeout(timeout)}
	if verbose {
		opts = append(opts, acthor.WithLogger(slog.Default()))
	}
	return opts
}

func getDevice(ctx context.Context) *acthor.Device {
	if targetHost == "" {
		fmt.Println("--host is required (try 'acthor discover')")
		os.Exit(1)
	}

	device, err := acthor.Connect(ctx, targetHost, clientOptions()...)
	if err != nil {
		fmt.Printf("Error connecting to %s: %v\n", targetHost, err)
		os.Exit(1)
	}
	return device
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover AC THOR devices on the local network",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Scanning for devices...")
		results, err := acthor.Discover(cmd.Context())
		if err != nil {
			fmt.Printf("Error discovering: %v\n", err)
			return
		}

		if len(results) == 0 {
			fmt.Println("No devices found.")
			return
		}

		for _, res := range results {
			fmt.Printf("Found Modbus host at: %s\n", res.Host)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device status, power and temperatures",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		device := getDevice(ctx)
		defer device.Disconnect()

		reg := device.Registers()

		fmt.Printf("Serial number: %s\n", device.SerialNumber())

		if major, sub, err := reg.ControlFirmwareVersion(ctx); err == nil {
			fmt.Printf("Firmware:      %d.%d\n", major, sub)
		}

		status, err := reg.Status(ctx)
		if err != nil {
			fmt.Printf("Error reading status: %v\n", err)
			return
		}
		fmt.Printf("Status:        %s (%d)\n", status, uint16(status))

		if power, err := reg.Power(ctx); err == nil {
			fmt.Printf("Power:         %d W\n", power)
		}
		if nominal, err := reg.LoadNominalPower(ctx); err == nil {
			fmt.Printf("Nominal load:  %d W\n", nominal)
		}
		if relay, err := reg.Relay1Status(ctx); err == nil {
			fmt.Printf("Relay 1:       %v\n", relay)
		}

		temps, err := reg.Temps(ctx)
		if err != nil {
			fmt.Printf("Error reading temperatures: %v\n", err)
			return
		}
		for i, temp := range temps {
			if temp == 0 {
				continue
			}
			fmt.Printf("Sensor %d:      %.1f degC\n", i+1, temp)
		}
	},
}

var readCmd = &cobra.Command{
	Use:   "read [register-name]",
	Short: "Read a register by name",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if list, _ := cmd.Flags().GetBool("list"); list {
			names := acthor.Names()
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return
		}

		if len(args) != 1 {
			fmt.Println("register name required (use --list to see them)")
			os.Exit(1)
		}

		ctx := cmd.Context()
		device := getDevice(ctx)
		defer device.Disconnect()

		value, err := device.Registers().Read(ctx, args[0])
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("%s = %v\n", args[0], value)
	},
}

var setPowerCmd = &cobra.Command{
	Use:   "set-power [watts]",
	Short: "Send an excess power value to the device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		watts, err := strconv.Atoi(args[0])
		if err != nil || watts < 0 {
			fmt.Printf("Invalid wattage '%s': must be a non-negative number\n", args[0])
			os.Exit(1)
		}

		ctx := cmd.Context()
		device := getDevice(ctx)
		defer device.Disconnect()

		if err := device.SetPowerExcess(ctx, watts); err != nil {
			fmt.Printf("Error writing setpoint: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Setpoint written: %d W\n", device.PowerTarget())
	},
}

var overrideCmd = &cobra.Command{
	Use:   "override [watts|on|off]",
	Short: "Set or clear the power override",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		modeStr, _ := cmd.Flags().GetString("mode")
		mode := acthor.OverrideMode(modeStr)

		ctx := cmd.Context()
		device := getDevice(ctx)
		defer device.Disconnect()

		var err error
		switch args[0] {
		case "on":
			err = device.EnablePowerOverride(ctx, true, mode)
		case "off":
			err = device.EnablePowerOverride(ctx, false, mode)
		default:
			watts, convErr := strconv.Atoi(args[0])
			if convErr != nil || watts < 0 {
				fmt.Printf("Invalid override '%s': must be a wattage, 'on' or 'off'\n", args[0])
				os.Exit(1)
			}
			err = device.SetPowerOverride(ctx, watts, mode)
		}
		if err != nil {
			fmt.Printf("Error setting override: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Override: %d W (%s), target %d W\n",
			device.PowerOverride(), device.OverrideMode(), device.PowerTarget())
	},
}

var boostCmd = &cobra.Command{
	Use:   "boost",
	Short: "Trigger a manual boost run",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		device := getDevice(ctx)
		defer device.Disconnect()

		if err := device.Registers().ActivateBoost(ctx); err != nil {
			fmt.Printf("Error triggering boost: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Boost triggered.")
	},
}
