package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdNote() *cli.Command {
	var rtCfg runtimeConfig

	// noteAction parses the entity key and runs fn with the remaining arguments
	noteAction := func(fn func(ctx context.Context, c *cli.Command, rt *runtime, key model.EntityKey, rest []string) error) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			key, rest, err := parseEntityKey(c.Args().Slice())
			if err != nil {
				return err
			}
			rt, err := rtCfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)
			return fn(ctx, c, rt, key, rest)
		}
	}

	return &cli.Command{
		Name:  "note",
		Usage: "Manage notes attached to entities",
		Flags: rtCfg.Flags(),
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Attach a note and refresh the search index",
				ArgsUsage: "<type:id> <text...>",
				Action: noteAction(func(ctx context.Context, c *cli.Command, rt *runtime, key model.EntityKey, rest []string) error {
					note, err := rt.uc.Note.AddNote(ctx, key, strings.Join(rest, " "))
					if err != nil {
						return goerr.Wrap(err, "failed to add note")
					}
					printNotes(c.Root().Writer, []*model.Note{note})
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Remove a note and refresh the search index",
				ArgsUsage: "<type:id> <note-id>",
				Action: noteAction(func(ctx context.Context, c *cli.Command, rt *runtime, key model.EntityKey, rest []string) error {
					if len(rest) != 1 {
						return goerr.New("exactly one note id is required")
					}
					if err := rt.uc.Note.DeleteNote(ctx, key, model.NoteID(rest[0])); err != nil {
						return goerr.Wrap(err, "failed to delete note")
					}
					_, _ = fmt.Fprintf(c.Root().Writer, "deleted %s\n", rest[0])
					return nil
				}),
			},
			{
				Name:      "list",
				Usage:     "List notes of an entity, newest first",
				ArgsUsage: "<type:id>",
				Action: noteAction(func(ctx context.Context, c *cli.Command, rt *runtime, key model.EntityKey, _ []string) error {
					notes, err := rt.uc.Note.ListNotes(ctx, key)
					if err != nil {
						return goerr.Wrap(err, "failed to list notes")
					}
					printNotes(c.Root().Writer, notes)
					return nil
				}),
			},
			{
				Name:      "improve",
				Usage:     "Rewrite a draft note in the narrator voice without saving it",
				ArgsUsage: "<type:id> <draft...>",
				Action: noteAction(func(ctx context.Context, c *cli.Command, rt *runtime, key model.EntityKey, rest []string) error {
					improved, err := rt.uc.Note.ImproveNote(ctx, key, strings.Join(rest, " "))
					if err != nil {
						return goerr.Wrap(err, "failed to improve note")
					}
					_, _ = fmt.Fprintln(c.Root().Writer, improved)
					return nil
				}),
			},
		},
	}
}
