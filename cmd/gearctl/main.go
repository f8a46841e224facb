// Command gearctl drives the gear reservation backend from the terminal:
// browsing inventory, managing an event's gear lists, moving event dates,
// and saving or loading packages.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/germz92/gearbook/internal/availability"
	"github.com/germz92/gearbook/internal/engine"
	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
	"github.com/germz92/gearbook/internal/workflow"
)

const usage = `Usage: gearctl <command> [flags]

Commands:
  login       authenticate and print a token
  inventory   list gear units and their availability
  show        print an event's gear lists
  checkout    reserve a unit and add it to the event's active list
  return      remove a list item and release its reservation
  set-dates   move an event's date window, migrating reservations
  package     save, load, list or delete gear packages
  watch       follow the change feed for an event

The server URL and token come from GEARBOOK_SERVER and GEARBOOK_TOKEN
(a .env file is read if present); flags override them.
`

func main() {
	godotenv.Load(".env")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "login":
		err = cmdLogin(os.Args[2:])
	case "inventory":
		err = cmdInventory(os.Args[2:])
	case "show":
		err = cmdShow(os.Args[2:])
	case "checkout":
		err = cmdCheckout(os.Args[2:])
	case "return":
		err = cmdReturn(os.Args[2:])
	case "set-dates":
		err = cmdSetDates(os.Args[2:])
	case "package":
		err = cmdPackage(os.Args[2:])
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "-h", "-help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connFlags registers the flags every authenticated command shares.
func connFlags(fs *flag.FlagSet) (server, token *string) {
	server = fs.String("server", os.Getenv("GEARBOOK_SERVER"), "backend URL")
	token = fs.String("token", os.Getenv("GEARBOOK_TOKEN"), "auth token")
	return server, token
}

func newClient(server, token string) (*gateway.Client, error) {
	if server == "" {
		return nil, fmt.Errorf("no server URL (set GEARBOOK_SERVER or pass -server)")
	}
	if token == "" {
		return nil, fmt.Errorf("no token (run 'gearctl login' and set GEARBOOK_TOKEN)")
	}
	return gateway.New(server, token), nil
}

func parseRange(from, to string) (model.DateRange, error) {
	var rng model.DateRange
	var err error
	if from != "" {
		if rng.Start, err = model.ParseDay(from); err != nil {
			return rng, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if to != "" {
		if rng.End, err = model.ParseDay(to); err != nil {
			return rng, fmt.Errorf("invalid -to: %w", err)
		}
	}
	return rng, nil
}

// loadStore fetches the event document into a gateway-backed list store.
func loadStore(ctx context.Context, client *gateway.Client, eventID string) (*liststore.Store, error) {
	if eventID == "" {
		return nil, fmt.Errorf("-event is required")
	}
	store := liststore.New(client, nil)
	if err := store.Load(ctx, eventID); err != nil {
		return nil, err
	}
	return store, nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	server := fs.String("server", os.Getenv("GEARBOOK_SERVER"), "backend URL")
	name := fs.String("name", "", "operator name")
	fs.Parse(args)

	if *server == "" || *name == "" {
		return fmt.Errorf("-server and -name are required")
	}

	fmt.Print("Password: ")
	password, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	password = strings.TrimRight(password, "\r\n")

	body, _ := json.Marshal(map[string]string{"name": *name, "password": password})
	resp, err := http.Post(*server+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed (%d)", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}

	fmt.Printf("Logged in as %s (%s).\n\nexport GEARBOOK_TOKEN=%s\n", *name, result.Role, result.Token)
	return nil
}

func cmdInventory(args []string) error {
	fs := flag.NewFlagSet("inventory", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event to check availability for")
	from := fs.String("from", "", "window start (YYYY-MM-DD)")
	to := fs.String("to", "", "window end (YYYY-MM-DD)")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	units, err := client.FetchInventory(ctx)
	if err != nil {
		return err
	}

	rng, err := parseRange(*from, *to)
	if err != nil {
		return err
	}
	withWindow := !rng.IsZero()
	if withWindow {
		if err := rng.Validate(); err != nil {
			return err
		}
	}

	for i := range units {
		unit := &units[i]
		line := fmt.Sprintf("%-36s  %-24s  %-12s  qty %d", unit.ID, unit.Label, unit.Category, unit.EffectiveQuantity())
		if withWindow {
			free := availability.AvailableQuantity(unit, availability.Check{Range: rng, EventID: *eventID})
			line += fmt.Sprintf("  free %d", free)
		}
		fmt.Println(line)
	}
	return nil
}

func cmdShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	store, err := loadStore(context.Background(), client, *eventID)
	if err != nil {
		return err
	}

	dates := store.Dates()
	if dates.IsZero() {
		fmt.Printf("Event %s (no dates set)\n", store.EventID())
	} else {
		fmt.Printf("Event %s  %s\n", store.EventID(), dates)
	}

	active := store.ActiveListName()
	for _, name := range store.ListNames() {
		marker := " "
		if name == active {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	for _, h := range store.ActiveListItems() {
		kind := "custom"
		if h.Item.IsInventory() {
			kind = h.Item.InventoryID
		}
		checked := " "
		if h.Item.Checked {
			checked = "x"
		}
		fmt.Printf("  [%s] %-24s %-12s (%s)\n", checked, h.Item.Label, h.Ref.Category, kind)
	}
	return nil
}

func cmdCheckout(args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	gearID := fs.String("gear", "", "gear unit ID")
	from := fs.String("from", "", "checkout date (YYYY-MM-DD)")
	to := fs.String("to", "", "checkin date (YYYY-MM-DD)")
	qty := fs.Int("qty", 1, "quantity for pooled units")
	category := fs.String("category", "", "list category (default: the unit's own)")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	if *gearID == "" {
		return fmt.Errorf("-gear is required")
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}

	rng, err := parseRange(*from, *to)
	if err != nil {
		return err
	}
	if rng.IsZero() {
		rng = store.Dates()
	}
	if err := rng.Validate(); err != nil {
		return fmt.Errorf("no usable date window: %w", err)
	}

	result, err := client.Checkout(ctx, gateway.ReservationRequest{
		GearID:       *gearID,
		EventID:      *eventID,
		CheckOutDate: rng.Start,
		CheckInDate:  rng.End,
		Quantity:     *qty,
	})
	if err != nil {
		var conflict *gateway.ConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("unavailable: %s", conflict.Reason)
		}
		return err
	}

	cat := *category
	if cat == "" {
		cat = result.Category
	}
	if cat == "" {
		cat = "Uncategorized"
	}
	if err := store.AddReservedItem(ctx, cat, result); err != nil {
		return fmt.Errorf("reserved but not added to list: %w", err)
	}

	fmt.Printf("Checked out %s for %s.\n", result.Label, rng)
	return nil
}

func cmdReturn(args []string) error {
	fs := flag.NewFlagSet("return", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	label := fs.String("label", "", "list item label")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	if *label == "" {
		return fmt.Errorf("-label is required")
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}

	for _, h := range store.ActiveListItems() {
		if h.Item.Label == *label {
			if err := store.RemoveItem(ctx, h.Ref); err != nil {
				return err
			}
			fmt.Printf("Returned %s.\n", *label)
			return nil
		}
	}
	return fmt.Errorf("no item labeled %q in the active list", *label)
}

func cmdSetDates(args []string) error {
	fs := flag.NewFlagSet("set-dates", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	from := fs.String("from", "", "new checkout date (YYYY-MM-DD)")
	to := fs.String("to", "", "new checkin date (YYYY-MM-DD)")
	yes := fs.Bool("yes", false, "release conflicting items without prompting")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}
	oldRange := store.Dates()

	proposed, err := parseRange(*from, *to)
	if err != nil {
		return err
	}

	conflictWF := workflow.NewConflict(store, client, client, nil)
	decision, err := conflictWF.CheckDateChange(ctx, proposed)
	if err != nil {
		var pre *gateway.PreconditionError
		if errors.As(err, &pre) {
			return fmt.Errorf("%s", pre.Reason)
		}
		return err
	}

	if decision != nil {
		fmt.Println("These items are not available for the new dates:")
		for _, label := range decision.Labels() {
			fmt.Printf("  - %s\n", label)
		}
		if !*yes && !confirm("Release them and continue?") {
			if err := decision.Cancel(ctx); err != nil {
				return err
			}
			fmt.Println("Date change cancelled.")
			return nil
		}
		if err := decision.Confirm(ctx); err != nil {
			return err
		}
	}

	// Move every remaining reservation to the new window.
	migrator := workflow.NewMigrator(store, client, nil)
	result, err := migrator.Migrate(ctx, oldRange, proposed)
	if err != nil {
		return err
	}
	fmt.Println(result.Summary())
	return nil
}

func cmdPackage(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: gearctl package <save|load|list|delete> [flags]")
	}
	switch args[0] {
	case "save":
		return cmdPackageSave(args[1:])
	case "load":
		return cmdPackageLoad(args[1:])
	case "list":
		return cmdPackageList(args[1:])
	case "delete":
		return cmdPackageDelete(args[1:])
	}
	return fmt.Errorf("unknown package command: %s", args[0])
}

func cmdPackageSave(args []string) error {
	fs := flag.NewFlagSet("package save", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	name := fs.String("name", "", "package name")
	description := fs.String("description", "", "package description")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}

	resolver := workflow.NewResolver(store, client, client, nil)
	pkg, err := resolver.Save(ctx, *name, *description)
	if err != nil {
		return err
	}

	saved, err := client.SavePackage(ctx, pkg)
	if err != nil {
		return err
	}
	fmt.Printf("Saved package %s (%s).\n", saved.Name, saved.ID)
	return nil
}

func cmdPackageLoad(args []string) error {
	fs := flag.NewFlagSet("package load", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event ID")
	id := fs.String("id", "", "package ID")
	yes := fs.Bool("yes", false, "skip unavailable items without prompting")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}

	pkg, err := client.GetPackage(ctx, *id)
	if err != nil {
		return err
	}

	resolver := workflow.NewResolver(store, client, client, nil)
	plan, err := resolver.Plan(ctx, pkg, store.Dates())
	if err != nil {
		var pre *gateway.PreconditionError
		if errors.As(err, &pre) {
			return fmt.Errorf("%s", pre.Reason)
		}
		return err
	}

	if plan.NeedsConfirmation() {
		fmt.Println("These package items are not available for the event's dates:")
		for _, label := range plan.Unavailable {
			fmt.Printf("  - %s\n", label)
		}
		if !*yes && !confirm("Load the package without them?") {
			fmt.Println("Package load cancelled.")
			return nil
		}
	}

	report, err := resolver.Apply(ctx, plan)
	if err != nil {
		return err
	}
	fmt.Printf("Added %d items.\n", len(report.Applied))
	for _, s := range report.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.Label, s.Reason)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	return nil
}

func cmdPackageList(args []string) error {
	fs := flag.NewFlagSet("package list", flag.ExitOnError)
	server, token := connFlags(fs)
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}

	pkgs, err := client.ListPackages(context.Background())
	if err != nil {
		return err
	}
	for _, pkg := range pkgs {
		fmt.Printf("%-36s  %s\n", pkg.ID, pkg.Name)
	}
	return nil
}

func cmdPackageDelete(args []string) error {
	fs := flag.NewFlagSet("package delete", flag.ExitOnError)
	server, token := connFlags(fs)
	id := fs.String("id", "", "package ID")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	if err := client.DeletePackage(context.Background(), *id); err != nil {
		return err
	}
	fmt.Println("Package deleted.")
	return nil
}

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	server, token := connFlags(fs)
	eventID := fs.String("event", "", "event to follow")
	fs.Parse(args)

	client, err := newClient(*server, *token)
	if err != nil {
		return err
	}
	if *eventID == "" {
		return fmt.Errorf("-event is required")
	}
	ctx := context.Background()

	store, err := loadStore(ctx, client, *eventID)
	if err != nil {
		return err
	}

	session := engine.NewSession(*eventID, func(ctx context.Context, id string) error {
		if err := store.Load(ctx, id); err != nil {
			return err
		}
		fmt.Printf("event %s changed (revision %d, %d items held)\n",
			id, store.Revision(), len(store.HeldItems()))
		return nil
	}, nil)

	fmt.Println("Watching for changes (Ctrl-C to stop)...")
	return client.Watch(ctx, func(changed string) {
		session.GearChanged(ctx, changed)
	})
}
