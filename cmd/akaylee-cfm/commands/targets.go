/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: targets.go
Description: Listing commands for Akaylee CFM. Shows the built-in targets with their default
seeds and the records saved in the record store.
*/

package commands

import (
	"strconv"
	"strings"

	"github.com/kleascm/akaylee-cfm/pkg/storage"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ListTargets prints the built-in targets
func ListTargets(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"name", "description", "seeds"})
	for _, name := range targets.Names() {
		spec, err := targets.Lookup(name)
		if err != nil {
			return err
		}
		quoted := make([]string, len(spec.Seeds))
		for i, s := range spec.Seeds {
			quoted[i] = strconv.Quote(s)
		}
		table.Append([]string{spec.Name, spec.Description, strings.Join(quoted, " ")})
	}
	table.Render()
	return nil
}

// ListRecords prints the records in the record store
func ListRecords(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	store, err := storage.Open(viper.GetString("store"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metas, err := store.List()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"name", "target", "signatures", "inputs", "cap", "saved"})
	for _, m := range metas {
		table.Append([]string{
			m.Name,
			m.Target,
			strconv.Itoa(m.Entries),
			strconv.Itoa(m.Inputs),
			strconv.Itoa(m.Cap),
			m.SavedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}
