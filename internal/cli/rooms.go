package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddowsett/quizroom-go/internal/model"
)

func newCreateCmd() *cobra.Command {
	var name string
	var category int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new room and become its host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			who, err := app.Identity.Identify(ctx)
			if err != nil {
				return err
			}

			host := model.Player{ID: who.ID, DisplayName: who.DisplayName}
			room, err := app.Rooms.CreateRoom(ctx, host, name, category)
			if err != nil {
				return err
			}

			fmt.Printf("Created room %s (%q, category %d)\n", room.ID, room.Name, room.Category)
			fmt.Printf("Share the id, then run: quizroom play %s\n", room.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "room-name", "", "Room display name")
	cmd.Flags().IntVar(&category, "category", model.DefaultCategory, "Trivia category id")
	return cmd
}

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List open rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := app.Rooms.ListRooms(cmd.Context())
			if err != nil {
				return err
			}

			if len(rooms) == 0 {
				fmt.Println("No rooms available.")
				return nil
			}

			for _, room := range rooms {
				fmt.Printf("%s  %-24q  %d player(s)  %s\n",
					room.ID, room.Name, len(room.Players), room.State)
			}
			return nil
		},
	}
}
