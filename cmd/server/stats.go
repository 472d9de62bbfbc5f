package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

var summaryType string

var streakCmd = &cobra.Command{
	Use:   "streak <user-id>",
	Short: "Print a user's current streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		userID := generic.UserID(args[0])
		streak, err := eng.Streaks.CurrentStreak(cmd.Context(), userID)
		if err != nil {
			return err
		}

		label := color.New(color.Bold).Sprintf("%d day(s)", streak)
		fmt.Printf("Streak for %s as of %s: %s\n", userID, eng.Clock.Today(), label)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <user-id>",
	Short: "Print a user's weekly completion matrix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		rows, err := eng.Weekly.CurrentWeek(cmd.Context(), generic.UserID(args[0]), routine.Type(summaryType))
		if err != nil {
			return err
		}

		week := generic.WeekOf(eng.Clock.Today())
		faint := color.New(color.Faint)
		fmt.Printf("Week %s (%s)\n", generic.ISOWeekKey(week.Start), week)
		if len(rows) == 0 {
			faint.Println("  no routines")
			return nil
		}

		header := make([]string, 0, len(generic.MondayFirst))
		for _, d := range generic.MondayFirst {
			header = append(header, routine.WeekdayCode(d))
		}
		fmt.Printf("  %-28s %s\n", "", strings.Join(header, " "))

		done := color.New(color.FgGreen).Sprint(" ✓ ")
		missed := color.New(color.FgRed).Sprint(" ✗ ")
		for _, row := range rows {
			cells := make([]string, 0, len(row.Days))
			for _, d := range row.Days {
				if d.Done {
					cells = append(cells, done)
				} else {
					cells = append(cells, missed)
				}
			}
			title := row.Title
			if row.Cardinality == routine.Group {
				title += faint.Sprint(" (group)")
			}
			fmt.Printf("  %-28s %s\n", title, strings.Join(cells, " "))
		}
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryType, "type", string(routine.TypeDailyLife), "routine type (daily_life, finance)")
}
