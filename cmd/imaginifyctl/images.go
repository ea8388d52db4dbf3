package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/spf13/cobra"
)

var (
	listLimit  int
	webhookURL string
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List, inspect, delete and export saved images",
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the acting user's images",
	Args:  cobra.NoArgs,
	RunE:  runImagesList,
}

var imagesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesGet,
}

var imagesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesDelete,
}

var imagesExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Queue a PNG export of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesExport,
}

func init() {
	imagesListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of images")
	imagesExportCmd.Flags().StringVar(&webhookURL, "webhook", "", "URL notified when the export finishes")

	imagesCmd.AddCommand(imagesListCmd)
	imagesCmd.AddCommand(imagesGetCmd)
	imagesCmd.AddCommand(imagesDeleteCmd)
	imagesCmd.AddCommand(imagesExportCmd)
}

func runImagesList(cmd *cobra.Command, args []string) error {
	path := "/v1/images"
	if listLimit > 0 {
		path += "?limit=" + strconv.Itoa(listLimit)
	}

	var resp struct {
		Images []domain.ImageRecord `json:"images"`
	}
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}

	if structured() {
		return printOutput(cmd.OutOrStdout(), resp.Images)
	}

	rows := make([][]string, 0, len(resp.Images))
	for _, img := range resp.Images {
		rows = append(rows, []string{
			img.ID,
			truncate(img.Title, 32),
			string(img.TransformationType),
			img.ExportStatus,
			img.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	printTable(cmd.OutOrStdout(), []string{"ID", "Title", "Type", "Export", "Updated"}, rows)
	return nil
}

func runImagesGet(cmd *cobra.Command, args []string) error {
	var img domain.ImageRecord
	if err := newClient().getJSON("/v1/images/"+url.PathEscape(args[0]), &img); err != nil {
		return err
	}

	if structured() {
		return printOutput(cmd.OutOrStdout(), img)
	}
	printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, [][]string{
		{"ID", img.ID},
		{"Title", img.Title},
		{"Type", string(img.TransformationType)},
		{"Asset", img.AssetID},
		{"Size", fmt.Sprintf("%dx%d", img.Width, img.Height)},
		{"URL", img.TransformationURL},
		{"Export", img.ExportStatus},
	})
	return nil
}

func runImagesDelete(cmd *cobra.Command, args []string) error {
	if err := newClient().delete("/v1/images/" + url.PathEscape(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func runImagesExport(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if webhookURL != "" {
		body["webhook_url"] = webhookURL
	}

	var resp map[string]any
	if err := newClient().postJSON("/v1/images/"+url.PathEscape(args[0])+"/export", body, &resp); err != nil {
		return err
	}

	if structured() {
		return printOutput(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Export %v for %s (task %v)\n", resp["status"], args[0], resp["task_id"])
	return nil
}
