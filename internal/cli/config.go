package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/webmondiag/webmondiag/internal/config"
)

var configInitForce bool

// configCmd is the parent command for config operations.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for managing webmondiag configuration.`,
}

// configShowCmd shows the current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after files and environment variables are merged.`,
	Run:   runConfigShow,
}

// configPathCmd shows the config file path.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Long:  `Display the path to the configuration file.`,
	Run:   runConfigPath,
}

// configInitCmd initializes a config file.
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize configuration file",
	Long:  `Create a commented default configuration file.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if outputJSON {
		if err := printJSON(cfg); err != nil {
			exitError("encoding JSON: %v", err)
		}
		return
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		exitError("failed to marshal config: %v", err)
	}

	if file := cfg.File(); file != "" {
		fmt.Printf("# %s\n", file)
	} else {
		fmt.Println("# defaults (no config file found)")
	}
	fmt.Print(string(data))
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configPath, err := defaultConfigPath()
	if err != nil {
		exitError("failed to get home directory: %v", err)
	}
	if cfg, err := config.Load(cfgFile); err == nil && cfg.File() != "" {
		configPath = cfg.File()
	}

	fmt.Printf("Config file path: %s\n", configPath)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println("(file does not exist)")
	} else {
		fmt.Println("(file exists)")
	}
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath, err := defaultConfigPath()
	if err != nil {
		exitError("failed to get home directory: %v", err)
	}
	if len(args) == 1 {
		configPath = args[0]
	}

	if err := config.WriteDefault(configPath, configInitForce); err != nil {
		exitError("failed to write config file: %v", err)
	}
	fmt.Printf("Created config file: %s\n", configPath)
}

func defaultConfigPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
