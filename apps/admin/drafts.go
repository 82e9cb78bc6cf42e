package main

import (
	"context"
	"fmt"

	"github.com/trezcool/ratiba/core"
)

func (cli *commandLine) listDrafts(ordering []core.DBOrdering) error {
	drafts, err := cli.lessonSvc.ListDrafts(context.Background(), ordering)
	if err != nil {
		return err
	}

	tw := cli.newTable()
	fmt.Fprintln(tw, "ID\tTITLE\tLESSONS\tFROM\tTO\tCREATED")
	for _, d := range drafts {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			d.ID, d.Title, d.LessonCount, d.FirstDate, d.LastDate, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (cli *commandLine) discardDraft(batchID int) error {
	if err := cli.lessonSvc.DiscardDraft(context.Background(), batchID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "draft %d discarded\n", batchID)
	return nil
}

func (cli *commandLine) publishDraft(batchID int) error {
	if err := cli.lessonSvc.PublishDraft(context.Background(), batchID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "draft %d published\n", batchID)
	return nil
}
