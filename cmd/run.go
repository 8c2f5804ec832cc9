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
	"context"
	"fmt"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/MPM/model"
	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/internal/observability"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the mesh and particles of a model and map them at the start time",
	Long: `
Builds the mesh, generates and locates the particles, maps particle mass and momentum
to the nodes, applies the boundary conditions at the start time and optionally writes
a particle checkpoint.

gompm run -I input.yaml [--checkpoint particles.bin]`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ip, err := processInput(cmd)
		if err != nil {
			return
		}
		switch prof, _ := cmd.Flags().GetString("profile"); prof {
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
		case "":
		default:
			return fmt.Errorf("unknown profile %q, use cpu or mem", prof)
		}
		ip.Print()
		log := newLogger()
		ctx := logging.ContextWithLogger(context.Background(), log)
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
		if err != nil {
			return
		}
		defer observability.ShutdownWithTimeout(ctx, shutdown, log)
		collector, err := observability.NewMeshCollector(prometheus.NewRegistry())
		if err != nil {
			return
		}

		md, err := model.New(ip, mesh.WithLogger(log), mesh.WithMetrics(collector))
		if err != nil {
			return
		}
		t, _ := cmd.Flags().GetFloat64("time")
		if err = md.MapParticlesToNodes(ctx, t); err != nil {
			return
		}
		st, err := md.GatherStatistics(ctx)
		if err != nil {
			return
		}
		m := md.Mesh
		fmt.Printf("[%d]\t\t\t\t= Nodes\n", m.NNodes())
		fmt.Printf("[%d]\t\t\t\t= Cells\n", m.NCells())
		fmt.Printf("[%d]\t\t\t\t= Particles\n", st.Particles)
		fmt.Printf("[%d]\t\t\t\t= Particles outside the mesh\n", st.Unlocated)
		fmt.Printf("[%d]\t\t\t\t= Active Nodes\n", st.ActiveNodes)
		fmt.Printf("%12.6g\t\t= Particle Mass\n", st.ParticleMass)
		fmt.Printf("%12.6g\t\t= Nodal Mass\n", st.NodalMass)

		if cp, _ := cmd.Flags().GetString("checkpoint"); cp != "" {
			ip.Output.Checkpoint = cp
		}
		if format, _ := cmd.Flags().GetString("format"); format != "" {
			ip.Output.Format = format
		}
		if ip.Output.Checkpoint != "" {
			if err = m.WriteParticles(ctx, ip.Output.Checkpoint, ip.Output.Format, 0, t); err != nil {
				return
			}
			log.Info(ctx, "wrote particle checkpoint", logging.String("path", ip.Output.Checkpoint))
		}
		if metricsFile, _ := cmd.Flags().GetString("metricsFile"); metricsFile != "" {
			err = collector.WriteTextfile(metricsFile)
		}
		return
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Mesh\n\t- Materials\n\t- Particles")
	RunCmd.Flags().Float64P("time", "t", 0, "time at which the boundary conditions are applied")
	RunCmd.Flags().StringP("checkpoint", "c", "", "write the particles to this file, overrides Output.Checkpoint")
	RunCmd.Flags().String("format", "", "checkpoint format: binary or sqlite, overrides Output.Format")
	RunCmd.Flags().String("profile", "", "write a cpu or mem profile to the current directory")
	RunCmd.Flags().String("metricsFile", "", "write the Prometheus metrics to this file")
}
