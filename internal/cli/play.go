package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/services/results"
	"github.com/ddowsett/quizroom-go/internal/services/session"
)

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <room-id>",
		Short: "Join a room and play the round interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			roomID := model.RoomID(strings.ToUpper(strings.TrimSpace(args[0])))

			who, err := app.Identity.Identify(ctx)
			if err != nil {
				return err
			}
			player := model.Player{ID: who.ID, DisplayName: who.DisplayName}

			joined, err := app.Rooms.JoinRoom(ctx, roomID, player)
			if errors.Is(err, model.ErrRoomNotFound) {
				fmt.Println("Room not found. Check the id or run 'quizroom rooms'.")
				return err
			}
			if err != nil {
				return err
			}

			fmt.Printf("Joined %q as %s.\n", joined.Name, who.DisplayName)
			if joined.HostID == who.ID {
				fmt.Println(`You are the host: type "start" when everyone is in.`)
			}
			fmt.Println("Answer questions by typing the option number.")

			sess := app.NewSession(roomID, who.ID)
			defer sess.Close()

			// The stdin reader needs the state the UI last rendered to
			// map an option number onto an answer
			var current atomic.Pointer[session.State]

			go readCommands(sess, &current, func() {
				if _, err := app.Rooms.StartRound(ctx, roomID, who.ID); err != nil {
					fmt.Printf("Cannot start: %v\n", err)
				}
			})

			errCh := make(chan error, 1)
			go func() { errCh <- sess.Run(ctx) }()

			for ev := range sess.Events() {
				st := ev.State
				current.Store(&st)

				switch ev.Type {
				case session.EventLobby:
					fmt.Printf("Waiting in lobby: %s\n", playerNames(st.Room))

				case session.EventQuestion:
					q := st.Room.Questions[st.QuestionIndex]
					remaining := st.Room.Deadline.Sub(app.Clock.Now()).Round(time.Second)
					fmt.Printf("\nQuestion %d/%d (%s to answer)\n%s\n",
						st.QuestionIndex+1, len(st.Room.Questions), remaining, q.Text)
					for i, opt := range q.Options {
						fmt.Printf("  %d. %s\n", i+1, opt)
					}

				case session.EventReveal:
					switch {
					case st.SelectedAnswer == "":
						fmt.Printf("Time's up! The answer was: %s\n", st.CorrectAnswer)
					case st.Correct:
						fmt.Printf("Correct! +%d points\n", model.ScoreIncrement)
					default:
						fmt.Printf("Wrong. The answer was: %s\n", st.CorrectAnswer)
					}

				case session.EventDone:
					fmt.Println("\nGame over! Final scores:")
					for _, standing := range results.Finalize(st.Room) {
						fmt.Printf("  %d. %-20s %d points\n",
							standing.Rank, standing.Player.DisplayName, standing.Score)
					}
					points := st.Room.Scores[who.ID]
					if err := app.Leaderboard.RecordResult(ctx, player, points, st.Room.Category); err != nil {
						fmt.Printf("Warning: result not recorded on the leaderboard: %v\n", err)
					}
				}
			}

			err = <-errCh
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// readCommands turns stdin lines into session inputs: "start" begins
// the round, a number answers the current question
func readCommands(sess *session.Session, current *atomic.Pointer[session.State], start func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "start") {
			start()
			continue
		}

		st := current.Load()
		if st == nil || st.Phase != session.PhaseQuestion {
			fmt.Println("No question to answer right now.")
			continue
		}
		q := st.Room.Questions[st.QuestionIndex]

		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(q.Options) {
			fmt.Printf("Answer with a number between 1 and %d.\n", len(q.Options))
			continue
		}
		sess.Answer(q.Options[n-1])
	}
}

func playerNames(room *model.Room) string {
	names := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		names = append(names, p.DisplayName)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
