package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/jmcale/go-incident-dispatch/internal/config"
	"github.com/jmcale/go-incident-dispatch/internal/costmodel"
	"github.com/jmcale/go-incident-dispatch/internal/importer"
	"github.com/jmcale/go-incident-dispatch/internal/logging"
	"github.com/jmcale/go-incident-dispatch/internal/models"
	"github.com/jmcale/go-incident-dispatch/internal/planner"
)

// dispatch-plan runs the advisory planner offline: it loads a fleet roster
// and an incident backlog from CSV files and prints the proposed pairings.
func main() {
	unitsPath := flag.String("units", "", "path to fleet roster CSV")
	incidentsPath := flag.String("incidents", "", "path to incident backlog CSV")
	seed := flag.Int64("seed", 1, "planner random seed")
	trials := flag.Int("trials", 0, "override planner trials")
	flag.Parse()

	if *unitsPath == "" || *incidentsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dispatch-plan -units <roster.csv> -incidents <backlog.csv> [-seed n] [-trials n]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "dispatch-plan")

	units, err := loadUnits(*unitsPath)
	if err != nil {
		logging.Fatalf("Failed to load fleet roster: %v", err)
	}
	incidents, err := loadIncidents(*incidentsPath)
	if err != nil {
		logging.Fatalf("Failed to load incident backlog: %v", err)
	}

	costParams := costmodel.DefaultParams()
	costParams.PerKmRate = cfg.Cost.PerKmRate
	costParams.OvertimeThresholdHours = cfg.Cost.OvertimeThresholdHours
	costParams.OvertimeMultiplier = cfg.Cost.OvertimeMultiplier
	costs := costmodel.New(costParams)

	params := planner.DefaultParams()
	params.Trials = cfg.Planner.Trials
	params.RefineIters = cfg.Planner.RefineIters
	params.Seed = *seed
	if *trials > 0 {
		params.Trials = *trials
	}

	plan := planner.Solve(units, incidents, costs, params)

	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"incident_id", "unit_id"})

	incidentIDs := make([]string, 0, len(plan.Assignments))
	for id := range plan.Assignments {
		incidentIDs = append(incidentIDs, id)
	}
	sort.Strings(incidentIDs)
	for _, id := range incidentIDs {
		_ = w.Write([]string{id, plan.Assignments[id]})
	}
	for _, id := range plan.Unassigned {
		_ = w.Write([]string{id, ""})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logging.Fatalf("Failed to write plan: %v", err)
	}

	fmt.Fprintln(os.Stderr, "total_cost="+strconv.FormatFloat(plan.TotalCost, 'f', 2, 64)+
		" objective="+strconv.FormatFloat(plan.Objective, 'f', 2, 64)+
		" unassigned="+strconv.Itoa(len(plan.Unassigned)))
}

func loadUnits(path string) ([]models.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ParseUnits(f)
}

func loadIncidents(path string) ([]models.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ParseIncidents(f)
}
