package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pipewatch.org/internal/access"
	"pipewatch.org/internal/apiclient"
	"pipewatch.org/internal/config"
	"pipewatch.org/internal/credentials"
	"pipewatch.org/internal/obs"
	"pipewatch.org/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	obs.Init()
	cfg := config.FromEnv()

	// Explicit construction at start: stores -> selector -> client ->
	// coordinator, each passed down rather than looked up.
	sessionStore := credentials.NewMemoryStore()
	var persistentStore credentials.Store
	if cfg.SealPassphrase != "" {
		persistentStore = credentials.NewSealedFileStore(cfg.CredentialsPath, cfg.SealPassphrase)
	} else {
		persistentStore = credentials.NewFileStore(cfg.CredentialsPath)
	}
	selector := credentials.NewSelector(sessionStore)
	client := apiclient.New(cfg.BaseURL, selector, apiclient.WithTimeout(cfg.RequestTimeout))
	coord := session.New(client, selector, sessionStore, persistentStore,
		session.WithRefreshSkew(cfg.RefreshSkew))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord.Initialize(ctx)

	switch os.Args[1] {
	case "login":
		runLogin(ctx, coord)
	case "logout":
		runLogout(ctx, coord)
	case "whoami":
		runWhoami(coord)
	case "refresh":
		runRefresh(ctx, coord)
	case "register":
		runRegister(ctx, coord)
	case "passwd":
		runPasswd(ctx, coord)
	default:
		usage()
	}
}

func runLogin(ctx context.Context, coord *session.Coordinator) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	remember := fs.Bool("remember", false, "persist credentials across sessions")
	fs.Parse(os.Args[2:])

	if *email == "" {
		fatalf("login: -email is required")
	}
	password := os.Getenv("PIPEWATCH_PASSWORD")
	if password == "" {
		password = prompt("password: ")
	}

	if err := coord.Login(ctx, *email, password, *remember); err != nil {
		fatalf("login: %v", err)
	}
	state := coord.State()
	if state.Status != session.Authenticated {
		fatalf("login: %s", state.Err)
	}
	fmt.Printf("signed in as %s (%s)\n", state.User.Email, state.User.Role)
}

func runLogout(ctx context.Context, coord *session.Coordinator) {
	coord.Logout(ctx)
	fmt.Println("signed out")
}

func runWhoami(coord *session.Coordinator) {
	state := coord.State()
	if state.Status != session.Authenticated {
		fatalf("not signed in")
	}
	u := state.User
	fmt.Printf("id:    %s\n", u.ID)
	fmt.Printf("email: %s\n", u.Email)
	fmt.Printf("name:  %s %s\n", u.FirstName, u.LastName)
	fmt.Printf("role:  %s\n", u.Role)
	fmt.Printf("permissions: %s\n", strings.Join(u.Permissions, ", "))

	eval := coord.Evaluator()
	for _, role := range []access.Role{access.RoleAdmin, access.RoleManager, access.RoleUser} {
		if eval.CanManage(role) {
			fmt.Printf("manages: %s\n", role)
		}
	}
}

func runRefresh(ctx context.Context, coord *session.Coordinator) {
	if err := coord.Refresh(ctx); err != nil {
		fatalf("refresh: %v", err)
	}
	if coord.State().Status != session.Authenticated {
		fatalf("session expired, please sign in again")
	}
	fmt.Println("credentials rotated")
}

func runRegister(ctx context.Context, coord *session.Coordinator) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	username := fs.String("username", "", "display name")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	fs.Parse(os.Args[2:])

	if *email == "" || *username == "" {
		fatalf("register: -email and -username are required")
	}
	password := os.Getenv("PIPEWATCH_PASSWORD")
	if password == "" {
		password = prompt("password: ")
	}

	user, err := coord.Register(ctx, apiclient.RegisterParams{
		Email:     *email,
		Password:  password,
		Username:  *username,
		FirstName: *first,
		LastName:  *last,
	})
	if err != nil {
		fatalf("register: %v", err)
	}
	fmt.Printf("registered %s, please sign in\n", user.Email)
}

func runPasswd(ctx context.Context, coord *session.Coordinator) {
	if coord.State().Status != session.Authenticated {
		fatalf("not signed in")
	}
	current := prompt("current password: ")
	next := prompt("new password: ")
	if err := coord.ChangePassword(ctx, current, next); err != nil {
		fatalf("passwd: %v", err)
	}
	if coord.State().Status != session.Authenticated {
		fatalf("session expired, please sign in again")
	}
	fmt.Println("password changed")
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		fatalf("read input: %v", err)
	}
	return strings.TrimSpace(line)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <login|logout|whoami|refresh|register|passwd>\n", os.Args[0])
	os.Exit(1)
}
