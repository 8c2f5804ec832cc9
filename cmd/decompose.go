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
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/notargets/gompm/InputParameters"
	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/MPM/model"
	"github.com/notargets/gompm/MPM/partition"
	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/internal/observability"
)

// DecomposeCmd represents the decompose command
var DecomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Partition a model over ranks running in this process and check conservation",
	Long: `
Runs the ranks of a decomposed model inside this process, connected in memory or through
gRPC on loopback. The cells are partitioned, shared nodes and ghost cells are found, the
particles migrate to the ranks owning their cells and the nodal masses are summed across
ranks. The global particle and nodal masses are printed so their agreement can be checked.

gompm decompose -I input.yaml --ranks 4 --transport grpc`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ip, err := processInput(cmd)
		if err != nil {
			return
		}
		if n, _ := cmd.Flags().GetInt("ranks"); n > 0 {
			ip.Partition.Ranks = n
		}
		if name, _ := cmd.Flags().GetString("partitioner"); name != "" {
			ip.Partition.Partitioner = name
		}
		transport, _ := cmd.Flags().GetString("transport")
		return Decompose(ip, transport, newLogger())
	},
}

func init() {
	rootCmd.AddCommand(DecomposeCmd)
	DecomposeCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters")
	DecomposeCmd.Flags().IntP("ranks", "n", 0, "number of ranks, overrides Partition.Ranks")
	DecomposeCmd.Flags().StringP("partitioner", "p", "", "block, coordinate or metis, overrides Partition.Partitioner")
	DecomposeCmd.Flags().String("transport", "local", "rank transport: local or grpc")
}

func newWorld(transport string, n int, log logging.Logger) ([]comm.Communicator, error) {
	switch transport {
	case "", "local":
		return comm.NewLocalWorld(n), nil
	case "grpc":
		return comm.NewGRPCWorld(n, log)
	}
	return nil, fmt.Errorf("unknown transport %q, use local or grpc", transport)
}

type rankResult struct {
	particles int
	stats     model.Statistics
	partition mesh.PartitionStats
}

// Decompose runs every rank of ip concurrently and prints the decomposition and the mass totals
func Decompose(ip *InputParameters.InputParametersMPM, transport string, log logging.Logger) (err error) {
	p, err := partition.New(ip.Partition.Partitioner)
	if err != nil {
		return
	}
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
	nranks := ip.Partition.Ranks
	world, err := newWorld(transport, nranks, log)
	if err != nil {
		return
	}
	defer func() {
		for _, c := range world {
			_ = c.Close()
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg      sync.WaitGroup
		results = make([]rankResult, nranks)
		errs    = make([]error, nranks)
	)
	for r, c := range world {
		wg.Add(1)
		go func(r int, c comm.Communicator) {
			defer wg.Done()
			if errs[r] = runRank(ctx, ip, c, p, log, collector, &results[r]); errs[r] != nil {
				// unblock the ranks waiting on this one
				cancel()
			}
		}(r, c)
	}
	wg.Wait()
	for r, e := range errs {
		if e != nil {
			return fmt.Errorf("rank %d: %w", r, e)
		}
	}

	ps, st := results[0].partition, results[0].stats
	fmt.Printf("[%d] %s %s %s\t= Ranks, Partitioner, Halo, Transport\n", nranks, p.Name(), ip.Partition.Halo, transport)
	for r, res := range results {
		fmt.Printf("Rank[%d] = %d cells, %d particles\n", r, ps.Cells[r], res.particles)
	}
	fmt.Printf("[%d]\t\t\t\t= Cut Cell Pairs\n", ps.CutPairs)
	fmt.Printf("[%d]\t\t\t\t= Shared Nodes\n", ps.SharedNodes)
	fmt.Printf("%8.5f\t\t\t= Load Imbalance\n", ps.Imbalance)
	fmt.Printf("[%d]\t\t\t\t= Particles\n", st.Particles)
	fmt.Printf("%12.6g\t\t= Particle Mass\n", st.ParticleMass)
	fmt.Printf("%12.6g\t\t= Nodal Mass\n", st.NodalMass)
	if st.ParticleMass > 0 {
		fmt.Printf("%12.6g\t\t= Relative Mass Error\n", math.Abs(st.NodalMass-st.ParticleMass)/st.ParticleMass)
	}
	return
}

func runRank(ctx context.Context, ip *InputParameters.InputParametersMPM, c comm.Communicator, p partition.Partitioner,
	log logging.Logger, collector *observability.MeshCollector, res *rankResult) (err error) {
	md, err := model.New(ip, mesh.WithCommunicator(c), mesh.WithLogger(log), mesh.WithMetrics(collector))
	if err != nil {
		return
	}
	if err = md.Distribute(ctx, p); err != nil {
		return
	}
	if err = md.MapParticlesToNodes(ctx, 0); err != nil {
		return
	}
	res.particles = md.Mesh.NParticles()
	if res.stats, err = md.GatherStatistics(ctx); err != nil {
		return
	}
	res.partition, err = md.Mesh.PartitionStatistics()
	return
}
