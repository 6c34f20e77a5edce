package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "acthor",
	Short: "AC THOR control CLI",
	Long:  `A command line interface for controlling my-PV AC THOR solar-surplus water heaters over Modbus-TCP.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
