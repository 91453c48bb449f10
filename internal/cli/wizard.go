package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/wizard"
)

// NewWizardCommand creates the wizard command.
func NewWizardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "RSVP from the terminal",
		Long: `Walk through the RSVP form in the terminal: find the invitation by phone number,
answer for each guest, then add a song request and notes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			flow := wizard.New(a.guests, a.rsvp)
			afterSubmit := func(ctx context.Context) {
				if _, err := a.outbox.Drain(ctx); err != nil {
					a.logger.Error().Err(err).Msg("Failed to deliver follow-ups")
				}
			}
			return runWizard(cmd.Context(), flow, cmd.InOrStdin(), cmd.OutOrStdout(), afterSubmit, a.logger)
		},
	}
}

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// ask prints a prompt and reads one trimmed line; ok is false at end of input
func (p *prompter) ask(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

func (p *prompter) yesNo(prompt string) (bool, bool) {
	for {
		answer, ok := p.ask(prompt)
		if !ok {
			return false, false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, true
		case "n", "no":
			return false, true
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

func runWizard(ctx context.Context, flow *wizard.Flow, in io.Reader, out io.Writer, afterSubmit func(context.Context), logger zerolog.Logger) error {
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, "💍 Wedding RSVP")
	fmt.Fprintln(out, "===============")

	for {
		switch flow.Step() {
		case wizard.StepPhone:
			number, ok := p.ask("\nEnter your phone number (q to quit): ")
			if !ok || strings.EqualFold(number, "q") {
				return nil
			}
			if err := flow.SubmitPhone(ctx, number); err != nil {
				fmt.Fprintf(out, "❌ %s\n", userMessage(err, logger))
				continue
			}
			guests := flow.VisibleGuests()
			fmt.Fprintf(out, "\nWe found %d %s for your party.\n", len(guests), plural(len(guests), "guest", "guests"))

		case wizard.StepGuests:
			if !answerGuests(p, flow) {
				return nil
			}
			result, err := flow.Submit(ctx)
			if err != nil {
				fmt.Fprintf(out, "❌ %s\n", userMessage(err, logger))
				if again, ok := p.yesNo("Try again? [y/n]: "); !ok || !again {
					return nil
				}
				continue
			}
			fmt.Fprintf(out, "\n✅ %s (%d %s updated)\n", result.Message, result.UpdatedRecords, plural(result.UpdatedRecords, "record", "records"))
			if afterSubmit != nil {
				afterSubmit(ctx)
			}

		case wizard.StepThanks:
			fmt.Fprintln(out, "\n🎉 Thank you for your RSVP!")
			another, ok := p.yesNo("Submit another RSVP? [y/n]: ")
			if !ok || !another {
				return nil
			}
			flow.Reset()
		}
	}
}

// answerGuests collects every answer on the guests step; false means input ended
func answerGuests(p *prompter, flow *wizard.Flow) bool {
	for _, g := range flow.VisibleGuests() {
		attending, ok := p.yesNo(fmt.Sprintf("\nWill %s attend? [y/n]: ", g.Name))
		if !ok {
			return false
		}
		_ = flow.Answer(g.ID, attending)
		if !attending {
			continue
		}
		for {
			line, ok := p.ask("Dietary restrictions (" + strings.Join(dietaryOptions, ", ") + "; blank for none): ")
			if !ok {
				return false
			}
			d, err := parseDietary(line)
			if err != nil {
				fmt.Fprintf(p.out, "❌ %s\n", err)
				continue
			}
			_ = flow.SetDietary(g.ID, d)
			break
		}
	}

	for {
		song, ok := p.ask("\nWhat song would you like to dance to? ")
		if !ok {
			return false
		}
		track, ok := p.ask("Spotify track link (optional): ")
		if !ok {
			return false
		}
		if err := flow.SetSongRequest(song, track); err != nil {
			fmt.Fprintf(p.out, "❌ %s\n", apperr.PublicMessage(err))
			continue
		}
		break
	}

	notes, ok := p.ask("Additional notes (questions, etc.): ")
	if !ok {
		return false
	}
	_ = flow.SetNotes(notes)
	return true
}

var dietaryOptions = []string{"gluten-free", "vegetarian", "pescatarian", "soy", "sesame", "egg", "nut"}

// parseDietary reads a comma-separated list of dietary options
func parseDietary(line string) (models.DietaryRestrictions, error) {
	var d models.DietaryRestrictions
	for _, item := range strings.Split(line, ",") {
		switch strings.ToLower(strings.TrimSpace(item)) {
		case "":
		case "gluten-free", "gluten":
			d.GlutenFree = true
		case "vegetarian":
			d.Vegetarian = true
		case "pescatarian":
			d.Pescatarian = true
		case "soy":
			d.SoyAllergy = true
		case "sesame":
			d.SesameAllergy = true
		case "egg":
			d.EggAllergy = true
		case "nut", "nuts":
			d.NutAllergy = true
		default:
			return models.DietaryRestrictions{}, fmt.Errorf("unknown dietary option %q", strings.TrimSpace(item))
		}
	}
	return d, nil
}

// userMessage shows input problems as-is and hides everything else behind a generic message
func userMessage(err error, logger zerolog.Logger) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		return apperr.PublicMessage(err)
	}
	logger.Error().Err(err).Msg("RSVP wizard step failed")
	return "Something went wrong. Please try again."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
