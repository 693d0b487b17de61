package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/arambo/backoffice/internal/arambo"
	"github.com/arambo/backoffice/internal/session"
)

// printNotifier renders session events for the terminal.
type printNotifier struct{}

func (printNotifier) LoginSucceeded(username, durationLabel string) {
	fmt.Printf("login successful, welcome back %s! session expires in %s\n", username, durationLabel)
}

func (printNotifier) LoginFailed(message string) {
	fmt.Printf("login failed: %s\n", message)
}

func (printNotifier) RateLimited(message string) {
	fmt.Printf("too many attempts: %s\n", message)
}

func (printNotifier) ConnectionFailed() {
	fmt.Println("connection error: unable to reach the server, please try again")
}

func (printNotifier) SessionExpired() {
	fmt.Println("session expired, please log in again")
}

func (printNotifier) LoggedOut() {
	fmt.Println("logged out")
}

type cli struct {
	controller *session.Controller
	client     *arambo.Client
	store      *session.Store
}

func (c *cli) run(ctx context.Context, args []string) error {
	command, rest := args[0], args[1:]
	switch command {
	case "login":
		return c.login(ctx, rest)
	case "logout":
		c.controller.Logout(ctx)
		return nil
	case "status":
		return c.status()
	case "watch":
		return c.watch(ctx)
	case "properties", "trips", "trucks", "furniture":
		return c.resource(ctx, command, rest)
	case "stats":
		return c.stats(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "admin username")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("both -username and -password are required")
	}

	// the notifier has already reported the reason; the error only drives
	// the exit code
	if !c.controller.Login(ctx, *username, *password) {
		return fmt.Errorf("login failed")
	}
	return nil
}

func (c *cli) status() error {
	snap := c.controller.Snapshot()
	if !snap.IsAuthenticated() {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("logged in as:      %s\n", snap.Admin.Username)
	fmt.Printf("session duration:  %s\n", snap.DurationLabel)
	fmt.Printf("time remaining:    %s\n", c.store.FormattedRemaining())
	return nil
}

// watch streams the live remaining-time display until interrupted or the
// session ends.
func (c *cli) watch(ctx context.Context) error {
	snapshots, cancel := c.controller.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-snapshots:
			if !snap.IsAuthenticated() {
				fmt.Println("session ended")
				return nil
			}
			fmt.Printf("\rsession time remaining: %-16s", snap.Remaining)
		}
	}
}

func (c *cli) resource(ctx context.Context, resource string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing subcommand (list|get|update|delete)", resource)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "list":
		return c.list(ctx, resource)
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("%s get: exactly one id expected", resource)
		}
		return c.get(ctx, resource, rest[0])
	case "update":
		return c.update(ctx, resource, rest)
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("%s delete: exactly one id expected", resource)
		}
		return c.delete(ctx, resource, rest[0])
	default:
		return fmt.Errorf("%s: unknown subcommand %q", resource, action)
	}
}

func (c *cli) list(ctx context.Context, resource string) error {
	var result any
	var err error
	switch resource {
	case "properties":
		result, err = c.client.Properties(ctx, nil)
	case "trips":
		result, err = c.client.Trips(ctx)
	case "trucks":
		result, err = c.client.Trucks(ctx)
	case "furniture":
		result, err = c.client.FurnitureRequests(ctx, nil)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (c *cli) get(ctx context.Context, resource, id string) error {
	var result any
	var err error
	switch resource {
	case "properties":
		result, err = c.client.Property(ctx, id)
	case "trips":
		result, err = c.client.Trip(ctx, id)
	case "trucks":
		result, err = c.client.Truck(ctx, id)
	case "furniture":
		result, err = c.client.FurnitureRequest(ctx, id)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (c *cli) update(ctx context.Context, resource string, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.String("id", "", "resource id")
	fieldsJSON := fs.String("fields", "", "partial update as a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *fieldsJSON == "" {
		return fmt.Errorf("both -id and -fields are required")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(*fieldsJSON), &fields); err != nil {
		return fmt.Errorf("parse -fields: %w", err)
	}

	var result any
	var err error
	switch resource {
	case "properties":
		result, err = c.client.UpdateProperty(ctx, *id, fields)
	case "trips":
		result, err = c.client.UpdateTrip(ctx, *id, fields)
	case "trucks":
		result, err = c.client.UpdateTruck(ctx, *id, fields)
	case "furniture":
		result, err = c.client.UpdateFurnitureRequest(ctx, *id, fields)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (c *cli) delete(ctx context.Context, resource, id string) error {
	var err error
	switch resource {
	case "properties":
		err = c.client.DeleteProperty(ctx, id)
	case "trips":
		err = c.client.DeleteTrip(ctx, id)
	case "trucks":
		err = c.client.DeleteTruck(ctx, id)
	case "furniture":
		err = c.client.DeleteFurnitureRequest(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s %s deleted\n", resource, id)
	return nil
}

func (c *cli) stats(ctx context.Context) error {
	propertyStats, err := c.client.PropertyStats(ctx)
	if err != nil {
		return err
	}
	furnitureStats, err := c.client.FurnitureStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"properties": propertyStats,
		"furniture":  furnitureStats,
	})
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
