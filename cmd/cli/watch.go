package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediaq-go/internal/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live download and install events",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		taskID, _ := cmd.Flags().GetString("task")

		path := "/api/v1/events"
		if taskID != "" {
			path += "?task=" + url.QueryEscape(taskID)
		}

		conn, _, err := websocket.DefaultDialer.Dial(websocketURL(path), nil)
		exitOnError(err)
		defer conn.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			var event domain.Event
			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Fprintf(os.Stderr, "Event stream closed: %v\n", err)
				}
				return
			}
			fmt.Println(formatEvent(&event))
		}
	},
}

func init() {
	watchCmd.Flags().String("task", "", "Only show events for this task id")
}
