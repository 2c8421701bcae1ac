package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"connectrpc.com/connect"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/pkg/api"
)

type loginCmd struct {
	email    string
	password string
	remote   string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "obtain a session token" }
func (*loginCmd) Usage() string {
	return `tripctl login -email <email> -password <password>
tripctl login -remote-token <token>

  Prints a session token. Export it as TRIPLEDGER_SESSION or pass it with
  -token to the other commands.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "local account email")
	f.StringVar(&c.password, "password", "", "local account password")
	f.StringVar(&c.remote, "remote-token", "", "remote ledger access token to link instead of a local account")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client := api.NewAuthServiceClient(httpClient(), *serverURL, clientOptions()...)

	var (
		user  *api.User
		token string
	)
	switch {
	case c.remote != "":
		resp, err := client.LinkRemoteAccount(ctx, connect.NewRequest(&api.LinkRemoteAccountRequest{AccessToken: c.remote}))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		user, token = resp.Msg.User, resp.Msg.Token
	case c.email != "":
		resp, err := client.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: c.email, Password: c.password}))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		user, token = resp.Msg.User, resp.Msg.Token
	default:
		fmt.Fprintln(os.Stderr, "either -email or -remote-token is required")
		return subcommands.ExitUsageError
	}

	fmt.Fprintf(os.Stderr, "logged in as %s (%s)\n", user.Name, user.Email)
	fmt.Println(token)
	return subcommands.ExitSuccess
}

type tripsCmd struct{}

func (*tripsCmd) Name() string     { return "trips" }
func (*tripsCmd) Synopsis() string { return "list your trips" }
func (*tripsCmd) Usage() string {
	return `tripctl trips

  Lists the trips of the logged-in user.
`
}

func (*tripsCmd) SetFlags(*flag.FlagSet) {}

func (*tripsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client := api.NewTripServiceClient(httpClient(), *serverURL, clientOptions()...)
	resp, err := client.ListTrips(ctx, connect.NewRequest(&api.ListTripsRequest{}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	printTrips(os.Stdout, resp.Msg.Trips)
	return subcommands.ExitSuccess
}

func printTrips(w io.Writer, trips []*api.Trip) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tNAME\tDATES\tCURRENCIES")
	for _, t := range trips {
		dates := t.StartDate
		if t.EndDate != "" {
			dates += ".." + t.EndDate
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.GroupID, t.Name, dates, strings.Join(t.Currencies, ","))
	}
	tw.Flush()
}

type groupsCmd struct{}

func (*groupsCmd) Name() string     { return "groups" }
func (*groupsCmd) Synopsis() string { return "list remote ledger groups" }
func (*groupsCmd) Usage() string {
	return `tripctl groups

  Lists the remote ledger's groups; a * marks groups you already track.
`
}

func (*groupsCmd) SetFlags(*flag.FlagSet) {}

func (*groupsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client := api.NewTripServiceClient(httpClient(), *serverURL, clientOptions()...)
	resp, err := client.ListRemoteGroups(ctx, connect.NewRequest(&api.ListRemoteGroupsRequest{}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	printGroups(os.Stdout, resp.Msg.Groups)
	return subcommands.ExitSuccess
}

func printGroups(w io.Writer, groups []api.RemoteGroup) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tTRACKED")
	for _, g := range groups {
		names := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			names = append(names, m.Name)
		}
		tracked := ""
		if g.Tracked {
			tracked = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.Name, strings.Join(names, ","), tracked)
	}
	tw.Flush()
}

type syncCmd struct {
	group string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "reconcile a trip with the remote ledger" }
func (*syncCmd) Usage() string {
	return `tripctl sync -group <group_id>

  Fetches the group's expenses from the remote ledger and applies the
  differences to the local store.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.group, "group", "", "remote group id of the trip")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.group == "" {
		fmt.Fprintln(os.Stderr, "-group is required")
		return subcommands.ExitUsageError
	}
	client := api.NewExpenseServiceClient(httpClient(), *serverURL, clientOptions()...)
	resp, err := client.SyncTrip(ctx, connect.NewRequest(&api.SyncTripRequest{GroupID: c.group}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("inserted %d, updated %d, deleted %d\n", resp.Msg.Inserted, resp.Msg.Updated, resp.Msg.Deleted)
	return subcommands.ExitSuccess
}

type convertCmd struct {
	amount string
	from   string
	to     string
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between currencies" }
func (*convertCmd) Usage() string {
	return `tripctl convert -amount <amount> -from <code> [-to <code>]

  Converts with the server's cached rates. -to defaults to the server's
  reporting currency.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "amount", "", "amount to convert")
	f.StringVar(&c.from, "from", "", "source currency code")
	f.StringVar(&c.to, "to", "", "target currency code")
}

func (c *convertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil || c.from == "" {
		fmt.Fprintln(os.Stderr, "a numeric -amount and -from are required")
		return subcommands.ExitUsageError
	}
	client := api.NewCurrencyServiceClient(httpClient(), *serverURL, clientOptions()...)
	resp, err := client.Convert(ctx, connect.NewRequest(&api.ConvertRequest{Amount: amount, From: c.from, To: c.to}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s %s (rate %s)\n", resp.Msg.Amount.StringFixed(2), resp.Msg.To, resp.Msg.Rate)
	return subcommands.ExitSuccess
}
