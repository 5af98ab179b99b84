// Command slidectl is a headless client for slidesync presentations.
//
//	slidectl [flags] create [title]
//	slidectl [flags] join  <id|share>
//	slidectl [flags] show  <id|share>
//	slidectl [flags] share <id>
//	slidectl [flags] title <id|share> <title>
//	slidectl [flags] add-text <id|share> <slide> <text>
//	slidectl [flags] role  <id|share> <userId> <editor|viewer>
//	slidectl [flags] watch <id|share>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"slidesync/config"
	"slidesync/internal/apiclient"
	"slidesync/internal/editor"
	"slidesync/internal/geometry"
	"slidesync/internal/presentation/model"
	"slidesync/internal/realtime"
	"slidesync/internal/session"
	"slidesync/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type options struct {
	Token    string
	UserID   string
	Username string
	APIBase  string
	WSURL    string
	Command  string
	Args     []string
}

var errUsage = errors.New("usage: slidectl [-token T] [-user ID] [-name NAME] [-api URL] [-ws URL] <command> [args]")

// parseArgs reads flags, falling back to the environment and then to the token's claims.
func parseArgs(args []string, cfg config.Config) (options, error) {
	var opts options
	fs := flag.NewFlagSet("slidectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Token, "token", os.Getenv("SLIDESYNC_TOKEN"), "bearer token (or SLIDESYNC_TOKEN)")
	fs.StringVar(&opts.UserID, "user", os.Getenv("SLIDESYNC_USER"), "user id, defaults to the token subject")
	fs.StringVar(&opts.Username, "name", os.Getenv("SLIDESYNC_NAME"), "display name, defaults to the token username")
	fs.StringVar(&opts.APIBase, "api", cfg.APIBaseURL, "REST base URL (or API_BASE_URL)")
	fs.StringVar(&opts.WSURL, "ws", cfg.WSURL, "relay URL (or WS_URL)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() == 0 {
		return options{}, errUsage
	}
	opts.Command = fs.Arg(0)
	opts.Args = fs.Args()[1:]

	if opts.Token == "" {
		return options{}, errors.New("a token is required (use -token or SLIDESYNC_TOKEN)")
	}
	if opts.UserID == "" || opts.Username == "" {
		// The server verifies the token; here it only names the caller.
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(opts.Token, claims); err == nil {
			if sub, _ := claims["sub"].(string); opts.UserID == "" {
				opts.UserID = sub
			}
			if name, _ := claims["username"].(string); opts.Username == "" {
				opts.Username = name
			}
		}
	}
	if opts.Username == "" {
		opts.Username = opts.UserID
	}
	return opts, nil
}

// resolveID accepts either a presentation id or a share token.
func resolveID(arg string) (string, error) {
	if _, err := uuid.Parse(arg); err == nil {
		return arg, nil
	}
	return session.DecodeShareLink(arg)
}

func main() {
	cfg := config.Load()
	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logger.Log.Sync()

	opts, err := parseArgs(os.Args[1:], cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "slidectl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, cfg config.Config, out io.Writer) error {
	api := apiclient.NewClient(opts.APIBase, opts.Token)

	need := func(n int) error {
		if len(opts.Args) < n {
			return errUsage
		}
		return nil
	}

	switch opts.Command {
	case "create":
		title := ""
		if len(opts.Args) > 0 {
			title = opts.Args[0]
		}
		id, err := api.CreatePresentation(ctx, title)
		if err != nil {
			return err
		}
		link, err := session.EncodeShareLink(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\nshare: %s\n", id, link)
		return nil

	case "share":
		if err := need(1); err != nil {
			return err
		}
		link, err := session.EncodeShareLink(opts.Args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, link)
		return nil
	}

	if err := need(1); err != nil {
		return err
	}
	id, err := resolveID(opts.Args[0])
	if err != nil {
		return err
	}

	switch opts.Command {
	case "join":
		p, err := api.JoinPresentation(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "joined %s as %s\n", id, p.Role)
		return nil

	case "show":
		doc, err := api.GetPresentation(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	case "role":
		if err := need(3); err != nil {
			return err
		}
		role := model.Role(opts.Args[2])
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", opts.Args[2])
		}
		return api.ChangeRole(ctx, id, opts.Args[1], role)

	case "title", "add-text", "watch":
		return edit(ctx, opts, cfg, api, id, out)
	}
	return fmt.Errorf("unknown command %q", opts.Command)
}

// edit runs a live editing session for the commands that change or follow a document.
func edit(ctx context.Context, opts options, cfg config.Config, api *apiclient.Client, id string, out io.Writer) error {
	sess := session.Session{PresentationID: id, UserID: opts.UserID, Username: opts.Username, Token: opts.Token}
	if err := sess.Validate(); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		lastErr error
	)
	ctrl := editor.New(sess, editor.Deps{
		Store:    api,
		Sync:     realtime.NewChannel(opts.WSURL, opts.Token),
		Viewport: geometry.Fixed{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		Notifier: editor.NotifierFunc(func(message string, err error) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
			mu.Lock()
			lastErr = err
			mu.Unlock()
		}),
		Renderer: editor.RendererFunc(func(v editor.View) {
			if opts.Command == "watch" {
				fmt.Fprintf(out, "%s  %q  %d slide(s)  %d online  [%s]\n",
					time.Now().Format(time.TimeOnly), v.Presentation.Title, len(v.Presentation.Slides), len(v.Participants), v.Role)
			}
		}),
	}, editor.Options{QuietPeriod: cfg.SaveQuietPeriod})
	defer ctrl.Close()

	if err := ctrl.Load(ctx); err != nil {
		return err
	}

	switch opts.Command {
	case "title":
		if len(opts.Args) < 2 {
			return errUsage
		}
		ctrl.ChangeTitle(opts.Args[1])
	case "add-text":
		if len(opts.Args) < 3 {
			return errUsage
		}
		slide, err := strconv.Atoi(opts.Args[1])
		if err != nil {
			return fmt.Errorf("bad slide index %q", opts.Args[1])
		}
		before := ctrl.Snapshot()
		ctrl.AddTextBlock(slide)
		after := ctrl.Snapshot()
		if slide < 0 || slide >= len(after.Slides) || len(after.Slides[slide].TextBlocks) == len(before.Slides[slide].TextBlocks) {
			return fmt.Errorf("cannot add text to slide %d as %s", slide, ctrl.Role())
		}
		ctrl.EditText(slide, len(after.Slides[slide].TextBlocks)-1, opts.Args[2])
	case "watch":
		<-ctx.Done()
		return nil
	}

	if !ctrl.SavePending() {
		return fmt.Errorf("nothing changed; role is %s", ctrl.Role())
	}
	mu.Lock()
	lastErr = nil
	mu.Unlock()
	ctrl.Flush()
	mu.Lock()
	defer mu.Unlock()
	return lastErr
}
