package results

import (
	"sort"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// Standing is one row of the final score table
type Standing struct {
	Player model.Player
	Score  int
	Rank   int // 1-based; players with equal scores share a rank
}

// Finalize projects the room's player set and final score map into a
// ranked score table. It is a pure read-side projection: it performs no
// writes and only uses the snapshot it is given.
func Finalize(room *model.Room) []Standing {
	standings := make([]Standing, 0, len(room.Players))
	for _, p := range room.Players {
		standings = append(standings, Standing{
			Player: p,
			Score:  room.Scores[p.ID],
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		if !standings[i].Player.JoinedAt.Equal(standings[j].Player.JoinedAt) {
			return standings[i].Player.JoinedAt.Before(standings[j].Player.JoinedAt)
		}
		return standings[i].Player.ID < standings[j].Player.ID
	})

	for i := range standings {
		if i > 0 && standings[i].Score == standings[i-1].Score {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
	}
	return standings
}
