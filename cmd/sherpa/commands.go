package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/internal/usecase"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter writes scout progress lines to w.
func progressPrinter(w io.Writer) usecase.Listener {
	return func(ev usecase.Event) {
		switch ev.Kind {
		case usecase.EventProgress:
			fmt.Fprintf(w, "[%s] %s\n", ev.Update.Step, ev.Message)
		case usecase.EventError:
			fmt.Fprintf(w, "error: %s\n", ev.Message)
		}
	}
}

// trackPage makes url (or the active browser tab when url is empty) current.
func trackPage(cmd *cobra.Command, a *app, url string) (*entity.SiteState, error) {
	if url == "" {
		return a.controller.Open(cmd.Context())
	}
	return a.controller.HandleNavigation(cmd.Context(), url)
}

// resumePage is trackPage for callers about to ask: a stored verdict is
// enough because Ask revalidates with the backend.
func resumePage(cmd *cobra.Command, a *app, url string) (*entity.SiteState, error) {
	if url == "" {
		if a.tab == nil {
			return nil, repository.ErrNoActiveTab
		}
		active, err := a.tab.ActiveURL(cmd.Context())
		if err != nil {
			return nil, err
		}
		url = active
	}
	return a.controller.Resume(cmd.Context(), url)
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func newCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check [url]",
		Short: "Report whether a page's site has been scouted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e, logListener(e.logger))
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := trackPage(cmd, a, optionalArg(args))
			if err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}
}

func newScoutCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "scout [url]",
		Short: "Crawl and index a page's site so questions can be asked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e, progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := trackPage(cmd, a, optionalArg(args))
			if err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			if state.Ready() && !force {
				fmt.Fprintln(cmd.ErrOrStderr(), "site already scouted")
				return printJSON(cmd.OutOrStdout(), state)
			}

			state, err = a.controller.Scout(cmd.Context())
			if err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "scout even when the site is already indexed")
	return cmd
}

func newAskCmd(e *env) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "ask [--url url] question...",
		Short: "Ask a question about a scouted site",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e, logListener(e.logger))
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := resumePage(cmd, a, url); err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			answer, err := a.controller.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			return printJSON(cmd.OutOrStdout(), answer)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page the question is about (default: the active browser tab)")
	return cmd
}

func newFeedbackCmd(e *env) *cobra.Command {
	var (
		fb   entity.Feedback
		tier string
	)
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Report whether an answer led to the right page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			fb.Tier = entity.Tier(tier)
			if err := a.controller.SubmitFeedback(cmd.Context(), fb); err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "feedback sent")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&fb.LandedURL, "landed-url", "", "page the answer led to")
	flags.BoolVar(&fb.WasCorrect, "correct", false, "the page answered the question")
	flags.StringVar(&fb.JobID, "job-id", "", "crawl job the answer came from")
	flags.StringVar(&fb.SiteID, "site-id", "", "site the answer came from")
	flags.StringVar(&fb.Question, "question", "", "the question asked")
	flags.StringVar(&tier, "tier", "", "tier that produced the answer")
	_ = cmd.MarkFlagRequired("landed-url")
	return cmd
}

func newResultsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "results job-id",
		Short: "Show the best pages found by a crawl job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			head, err := a.backend.ResultsHead(cmd.Context(), args[0])
			if err != nil {
				return errors.New(usecase.UserMessage(err))
			}
			return printJSON(cmd.OutOrStdout(), head)
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the active browser tab and print readiness for every page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := json.NewEncoder(cmd.OutOrStdout())
			a, err := newApp(cmd.Context(), e, func(ev usecase.Event) {
				_ = out.Encode(ev)
			})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.tab == nil {
				return errors.New("watch needs a browser: set --chrome or CHROME_DEBUGGER_URL")
			}

			if _, err := a.controller.Open(cmd.Context()); err != nil {
				e.logger.Warn("could not read the active tab", zap.Error(err))
			}
			navigations, err := a.tab.Navigations(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.controller.Watch(cmd.Context(), navigations); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
}
