// Command romctl administers the ROM database from the command line:
// patient roster management, calibration inspection, schema migrations, and
// progress plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"

	"github.com/rehab-data/motion.report/internal/report"
	"github.com/rehab-data/motion.report/internal/rom"
	"github.com/rehab-data/motion.report/internal/version"
)

const usage = `usage: romctl [flags] <command> [args]

Commands:
  patients list                 List the patient roster
  patients add <id> [first last]  Add a patient
  patients del <id>             Remove a patient
  show <patient>                Print a patient's ROM record
  scores <patient>              Print a patient's session score history
  report <patient> <out.png>    Plot the patient's score trend
  migrate up                    Apply pending schema migrations
  migrate down                  Roll back the most recent migration
  migrate version               Print the current schema version
  migrate force <version>       Force the recorded schema version

Flags:
`

var (
	dbFile      = flag.String("db", "rom_data.db", "SQLite database file")
	migrations  = flag.String("migrations", "db/migrations", "Schema migrations directory")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store, err := rom.Open(*dbFile)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch args[0] {
	case "patients":
		err = runPatients(ctx, store, args[1:])
	case "show":
		err = runShow(ctx, store, args[1:])
	case "scores":
		err = runScores(ctx, store, args[1:])
	case "report":
		err = runReport(ctx, store, args[1:])
	case "migrate":
		err = runMigrate(store, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runPatients(ctx context.Context, store *rom.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("patients: missing subcommand (list, add, del)")
	}
	switch args[0] {
	case "list":
		patients, err := store.Patients(ctx)
		if err != nil {
			return err
		}
		if len(patients) == 0 {
			fmt.Println("no patients")
			return nil
		}
		for _, p := range patients {
			fmt.Printf("%s\t%s %s\t(added %s)\n", p.ID, p.FirstName, p.LastName, p.Created.Format("2006-01-02"))
		}
		return nil
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("patients add: missing patient id")
		}
		p := rom.Patient{ID: args[1]}
		if len(args) >= 4 {
			p.FirstName, p.LastName = args[2], args[3]
		}
		return store.AddPatient(ctx, p)
	case "del":
		if len(args) < 2 {
			return fmt.Errorf("patients del: missing patient id")
		}
		return store.DeletePatient(ctx, args[1])
	default:
		return fmt.Errorf("patients: unknown subcommand %q", args[0])
	}
}

func runShow(ctx context.Context, store *rom.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("show: missing patient id")
	}
	rec, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no calibration recorded for patient %s", args[0])
	}

	fmt.Printf("Patient:   %s\n", rec.PatientID)
	fmt.Printf("Taken:     %s\n", rec.Taken.Format("2006-01-02 15:04"))
	fmt.Printf("Overall:   %.1f\n", rec.OverallScore)
	fmt.Printf("Asymmetry: %.1f deg\n", rec.AsymmetryScore)
	if rec.Notes != "" {
		fmt.Printf("Notes:     %s\n", rec.Notes)
	}

	names := make([]string, 0, len(rec.Entries))
	for name := range rec.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rg := rec.Entries[name]
		fmt.Printf("  %-24s %6.1f - %6.1f deg\n", name, rg.Min, rg.Max)
	}
	return nil
}

func runScores(ctx context.Context, store *rom.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("scores: missing patient id")
	}
	scores, err := store.SessionScores(ctx, args[0])
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Printf("no sessions recorded for patient %s\n", args[0])
		return nil
	}
	for _, sc := range scores {
		fmt.Printf("%s\toverall %5.1f\tasymmetry %5.1f deg\n",
			sc.Taken.Format("2006-01-02 15:04"), sc.OverallScore, sc.AsymmetryScore)
	}
	return nil
}

func runReport(ctx context.Context, store *rom.Store, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("report: usage: report <patient> <out.png>")
	}
	scores, err := store.SessionScores(ctx, args[0])
	if err != nil {
		return err
	}
	if err := report.WriteScoreTrendPNG(args[1], args[0], scores); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d sessions)\n", args[1], len(scores))
	return nil
}

func runMigrate(store *rom.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("migrate: missing subcommand (up, down, version, force)")
	}
	switch args[0] {
	case "up":
		if err := store.MigrateUp(*migrations); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	case "down":
		if err := store.MigrateDown(*migrations); err != nil {
			return err
		}
		fmt.Println("rolled back one migration")
		return nil
	case "version":
		v, dirty, err := store.MigrateVersion(*migrations)
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
		return nil
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("migrate force: missing version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("migrate force: bad version %q", args[1])
		}
		return store.MigrateForce(*migrations, v)
	default:
		return fmt.Errorf("migrate: unknown subcommand %q", args[0])
	}
}
