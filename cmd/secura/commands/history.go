package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/domain"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [peer]",
		Short: "Print the stored conversation with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := currentUser()
			if err != nil {
				return err
			}
			msgs, err := wired.Messages.Query(domain.NewConversationKey(me, domain.Username(args[0])))
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(m, time.DateTime)
			}
			return nil
		},
	}
	return cmd
}

func conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List stored conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := currentUser()
			if err != nil {
				return err
			}
			convs, err := wired.Messages.Conversations(me)
			if err != nil {
				return err
			}
			for _, c := range convs {
				fmt.Printf("%s\t%s\n", usernameColor.Sprint(c.Key), c.LastMessageTime.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	return cmd
}
