/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gompm/InputParameters"
	"github.com/notargets/gompm/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gompm",
	Short: "Material point method background mesh and particle setup",
	Long: `
Builds the background mesh of a material point method model, generates and locates the
particles, applies the boundary conditions and decomposes the model over ranks.

gompm run -I input.yaml
gompm decompose -I input.yaml --ranks 4`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gompm.yaml)")
	pf.String("logLevel", "info", "log level: debug, info, warn or error")
	pf.String("logFormat", "text", "log format: text or json")
	pf.Int("grainSize", 0, "smallest chunk of work handed to a goroutine, overrides the input file when > 0")
	pf.String("haloStrategy", "", "nodal halo exchange: p2p or allreduce, overrides the input file")
	for _, name := range []string{"logLevel", "logFormat", "grainSize", "haloStrategy"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".gompm")
	}
	viper.SetEnvPrefix("GOMPM")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() logging.Logger {
	return logging.New(logging.Config{
		Level:  viper.GetString("logLevel"),
		Format: viper.GetString("logFormat"),
	})
}

const exampleInput = `
########################################
Title: "Column"
Mesh:
  Dimension: 2
  Grid: {Cells: [4, 2], Lower: [0, 0], Upper: [4, 2]}
  NodeSets:
    1: [0, 1, 2, 3, 4]
Materials:
  - ID: 1
    Type: LinearElastic2D
    Density: 1000
    Properties: {youngs_modulus: 1.e6, poisson_ratio: 0.3}
Particles:
  - {Generator: gauss, MaterialID: 1, NPoints: 2, CellSet: -1}
BoundaryConditions:
  VelocityConstraints:
    - {NodeSet: 1, Dir: 1, Velocity: 0}
Partition: {Ranks: 2, Partitioner: coordinate, Halo: p2p}
########################################
`

// processInput reads the input file named by the -I flag and applies the global overrides
func processInput(cmd *cobra.Command) (ip *InputParameters.InputParametersMPM, err error) {
	inputFile, err := cmd.Flags().GetString("inputConditionsFile")
	if err != nil {
		return
	}
	if len(inputFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleInput)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return
	}
	ip = &InputParameters.InputParametersMPM{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", inputFile, err)
	}
	if gs := viper.GetInt("grainSize"); gs > 0 {
		ip.GrainSize = gs
	}
	if hs := viper.GetString("haloStrategy"); hs != "" {
		ip.Partition.Halo = hs
	}
	return
}
