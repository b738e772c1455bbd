package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/tathmini/apps/api/echo"
	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/classroom"
	"github.com/trezcool/tathmini/core/rubric"
)

// load refreshes the dashboard and fails if one of collections could not be loaded at all.
func (cli *commandLine) load(ctx context.Context, refresh bool, collections ...string) error {
	if err := cli.dash.Refresh(ctx, refresh); err != nil {
		fmt.Fprintf(cli.out, "warning: %v\n", err)
	}
	if missing := cli.dash.Missing(collections...); len(missing) > 0 {
		return errors.Errorf("failed to load %s", strings.Join(missing, ", "))
	}
	return nil
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (cli *commandLine) rankings(ctx context.Context, students bool, groups []string, refresh bool) error {
	if err := cli.load(ctx, refresh, classroom.CollGroups, classroom.CollStudents, classroom.CollEvaluations); err != nil {
		return err
	}

	if students {
		ranked := cli.dash.StudentRanking()
		if !cli.tableOutput() {
			return cli.printJSON(ranked)
		}
		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tSTUDENT\tGROUP\tAVERAGE\tEVALUATIONS")
		for _, rs := range ranked {
			group := rs.GroupName
			if rs.NoGroup {
				group = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%d\n", rs.Rank, rs.Name, group, rs.AverageScore, rs.EvaluationCount)
		}
		return w.Flush()
	}

	ranked := cli.dash.GroupRanking(groups...)
	if !cli.tableOutput() {
		return cli.printJSON(ranked)
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tGROUP\tSCORE\tMEMBERS\tTIER")
	for _, rg := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\t%s\n", rg.Rank, rg.Name, rg.Score, rg.MemberCount, rg.Tier)
	}
	return w.Flush()
}

func (cli *commandLine) problems(ctx context.Context, refresh bool) error {
	if err := cli.load(ctx, refresh, classroom.CollEvaluations); err != nil {
		return err
	}

	stats := cli.dash.ProblemStats()
	if !cli.tableOutput() {
		return cli.printJSON(stats)
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPTION\tMARKS\tSELECTED")
	for _, opt := range rubric.All() {
		fmt.Fprintf(w, "%s\t%d\t%d\n", opt.Text(), opt.Marks(), stats.Counts[opt])
	}
	fmt.Fprintf(w, "\t\t\n%d score records\t\t\n", stats.Entries)
	return w.Flush()
}

func (cli *commandLine) cacheClear() error {
	if err := cli.cache.ClearAll(); err != nil {
		return errors.Wrap(err, "clearing cache")
	}
	fmt.Fprintln(cli.out, "cache cleared")
	return nil
}

func (cli *commandLine) token(id core.Identity) error {
	token, err := echoapi.GenerateToken(cli.conf, echoapi.NewClaims(cli.conf, id))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
