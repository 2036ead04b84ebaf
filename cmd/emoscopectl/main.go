// Command emoscopectl is a command line client for the emotion analysis API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/client"
	"github.com/phrazzld/emoscope/internal/domain"

	cli "github.com/urfave/cli/v2"
)

var (
	Error = log.New(os.Stderr, "Error: ", 0)
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		exitWithError(err)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()

	app.Name = "emoscopectl"
	app.Usage = "submit posts and text for emotion analysis"
	app.HideHelpCommand = true
	app.Writer = out

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Value:   "http://localhost:8080",
			EnvVars: []string{"EMOSCOPE_SERVER"},
			Usage:   "base `URL` of the analysis server",
		},
		&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "per-request timeout"},
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "show output in the JSON format"},
	}

	app.Commands = []*cli.Command{
		cmdSubmit,
		cmdResult,
		cmdText,
		cmdHealth,
	}

	return app
}

var cmdSubmit = &cli.Command{
	Name:      "submit",
	Usage:     "start the analysis of a post URL",
	ArgsUsage: "URL",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "block until the analysis finishes"},
		&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "polling interval used with --wait"},
		&cli.DurationFlag{Name: "max-wait", Value: 5 * time.Minute, Usage: "give up waiting after this long"},
	},
	Action: func(c *cli.Context) error {
		return execute(c, submit)
	},
}

func submit(ctx context.Context, c *cli.Context, cl *client.Client) error {
	id, err := cl.Submit(ctx, c.Args().First())
	if err != nil {
		return err
	}

	if !c.Bool("wait") {
		if c.Bool("json") {
			return printJSON(c.App.Writer, map[string]string{"task_id": id.String()})
		}
		fmt.Fprintln(c.App.Writer, id)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), c.Duration("max-wait"))
	defer cancel()

	res, err := cl.Wait(waitCtx, id, c.Duration("interval"))
	if res != nil {
		if perr := printResult(c, id, res.Status, res.Data, res.Error); perr != nil {
			return perr
		}
	}
	return err
}

var cmdResult = &cli.Command{
	Name:      "result",
	Usage:     "show the state of an analysis task",
	ArgsUsage: "TASK_ID",
	Action: func(c *cli.Context) error {
		return execute(c, result)
	},
}

func result(ctx context.Context, c *cli.Context, cl *client.Client) error {
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid task id: %s", c.Args().First()), 3)
	}

	res, err := cl.Result(ctx, id)
	if err != nil {
		return err
	}
	return printResult(c, id, res.Status, res.Data, res.Error)
}

var cmdText = &cli.Command{
	Name:      "text",
	Usage:     "classify the emotions of a text",
	ArgsUsage: "TEXT",
	Action: func(c *cli.Context) error {
		return execute(c, text)
	},
}

func text(ctx context.Context, c *cli.Context, cl *client.Client) error {
	out, err := cl.PredictText(ctx, strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, out)
	}
	printPredictions(c.App.Writer, "Text", out.TextPredictions)
	return nil
}

var cmdHealth = &cli.Command{
	Name:  "health",
	Usage: "check that the server is up",
	Action: func(c *cli.Context) error {
		return execute(c, health)
	},
}

func health(ctx context.Context, c *cli.Context, cl *client.Client) error {
	if err := cl.Health(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "ok")
	return nil
}

func execute(c *cli.Context, f func(context.Context, *cli.Context, *client.Client) error) error {
	if c.Args().Len() < countRequiredArgs(c.Command.ArgsUsage) {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 3)
	}

	cl, err := client.New(c.String("server"), nil)
	if err != nil {
		return cli.Exit(err, 3)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	return f(ctx, c, cl)
}

func countRequiredArgs(s string) (c int) {
	for _, v := range strings.Fields(s) {
		if !strings.HasPrefix(v, "[") {
			c++
		}
	}
	return c
}

func printResult(c *cli.Context, id uuid.UUID, status string, data *domain.Result, errMsg string) error {
	w := c.App.Writer

	if c.Bool("json") {
		v := struct {
			TaskID string         `json:"task_id"`
			Status string         `json:"status"`
			Data   *domain.Result `json:"data,omitempty"`
			Error  string         `json:"error,omitempty"`
		}{id.String(), status, data, errMsg}
		return printJSON(w, v)
	}

	fmt.Fprintf(w, "Task:   %s\nStatus: %s\n", id, status)
	if errMsg != "" {
		fmt.Fprintf(w, "Error:  %s\n", errMsg)
	}
	if data == nil {
		return nil
	}

	fmt.Fprintf(w, "Caption: %q\n", data.Text)
	if data.Media != nil {
		fmt.Fprintln(w, "Media:   yes")
	}
	printPredictions(w, "Text", data.TextPredictions)
	printPredictions(w, "Image", data.ImagePredictions)
	for _, warning := range data.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	return nil
}

func printPredictions(w io.Writer, title string, preds []domain.Prediction) {
	if len(preds) == 0 {
		fmt.Fprintf(w, "%s emotions: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s emotions:\n", title)
	for _, p := range preds {
		fmt.Fprintf(w, "  %-16s %6.2f%%\n", p.Label, p.Score*100)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	jb, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(jb))
	return nil
}

func exitWithError(err error) {
	var exitcode int

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
		exitcode = 2
	case errors.Is(err, client.ErrTaskFailed):
		exitcode = 4
	case errors.Is(err, client.ErrUnavailable):
		exitcode = 5
	default:
		exitcode = 1
	}

	Error.Println(err)

	os.Exit(exitcode)
}
