package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/handguide/narration"
)

var errNoQuestion = errors.New("no question asked")

var askCmd = &cobra.Command{
	Use:     "ask [QUESTION...]",
	Short:   "Ask the guide a question",
	Long:    paragraph(fmt.Sprintf("\n%s the guide about a place or a sight and hear the answer. Without a question you are prompted for one.", keyword("Ask"))),
	Example: paragraph("handguide ask 남산타워는 얼마나 높아요?\nhandguide ask --lang en What is hanok?"),
	Args:    cobra.ArbitraryArgs,
	RunE:    runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		q, err := readQuestion(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		question = q
	}
	return narrate(cmd.Context(), narration.PromptSource(question))
}

// readQuestion prompts on w and returns the first non-blank line of r.
func readQuestion(r io.Reader, w io.Writer) (string, error) {
	_, _ = fmt.Fprint(w, keyword(" 손안에 가이드 ")+" What would you like to know? ")

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			return q, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("unable to read question: %w", err)
	}
	return "", errNoQuestion
}
