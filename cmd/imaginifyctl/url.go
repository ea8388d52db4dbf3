package main

import (
	"fmt"

	"github.com/dunamismax/imaginify/internal/cdn"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/spf13/cobra"
)

var urlOpts struct {
	cloud       string
	baseURL     string
	kind        string
	aspectRatio string
	width       int
	height      int
	prompt      string
	color       string
}

var urlCmd = &cobra.Command{
	Use:   "url <asset-id>",
	Short: "Build a transformation URL without calling the API",
	Example: `  imaginifyctl url samples/beach --cloud demo --type restore
  imaginifyctl url samples/car --cloud demo --type recolor --prompt car --color "#ff0000"
  imaginifyctl url samples/room --cloud demo --type fill --aspect-ratio portrait`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

func init() {
	f := urlCmd.Flags()
	f.StringVar(&urlOpts.cloud, "cloud", "", "CDN cloud name (default: from CLOUDINARY_CLOUD_NAME env)")
	f.StringVar(&urlOpts.baseURL, "base-url", cdn.DefaultBaseURL, "CDN base URL")
	f.StringVarP(&urlOpts.kind, "type", "t", string(domain.TransformationRestore), "Transformation type")
	f.StringVar(&urlOpts.aspectRatio, "aspect-ratio", "", "Aspect ratio key for fill")
	f.IntVar(&urlOpts.width, "width", 0, "Output width")
	f.IntVar(&urlOpts.height, "height", 0, "Output height")
	f.StringVar(&urlOpts.prompt, "prompt", "", "Object prompt for remove and recolor")
	f.StringVar(&urlOpts.color, "color", "", "Target color for recolor")
}

func runURL(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseTransformationType(urlOpts.kind)
	if err != nil {
		return err
	}

	cloud := urlOpts.cloud
	if cloud == "" {
		cloud = envOr("CLOUDINARY_CLOUD_NAME", "")
	}
	builder := cdn.NewBuilder(cloud)
	builder.BaseURL = urlOpts.baseURL

	img := domain.ImageRecord{
		AssetID:            args[0],
		TransformationType: kind,
		Width:              urlOpts.width,
		Height:             urlOpts.height,
		AspectRatio:        urlOpts.aspectRatio,
	}
	if urlOpts.aspectRatio != "" {
		opt, err := domain.LookupAspectRatio(urlOpts.aspectRatio)
		if err != nil {
			return err
		}
		img.Width, img.Height = opt.Width, opt.Height
	}

	config := kind.DefaultConfig()
	if config.Remove != nil {
		config.Remove.Prompt = domain.String(urlOpts.prompt)
	}
	if config.Recolor != nil {
		config.Recolor.Prompt = domain.String(urlOpts.prompt)
		config.Recolor.To = domain.String(urlOpts.color)
	}

	width, height := domain.DisplaySize(kind, img)
	rendered, err := builder.URL(cdn.Params{
		AssetID: img.AssetID,
		Width:   width,
		Height:  height,
		Config:  config,
	})
	if err != nil {
		return err
	}

	if structured() {
		return printOutput(cmd.OutOrStdout(), map[string]any{
			"asset_id": img.AssetID,
			"type":     kind,
			"config":   config,
			"url":      rendered,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}
