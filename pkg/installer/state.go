package installer

// State names the stages of a run. Aborted is terminal and reachable
// from any other state on a fatal condition.
type State int

const (
	SelectingVersion State = iota
	ResolvingArchiveURL
	DownloadingArchive
	Extracting
	LoadingManifest
	BootstrappingLoader
	AcquiringFiles
	ApplyingOverrides
	Cleanup
	Done
	Aborted
)

var stateNames = map[State]string{
	SelectingVersion:    "selecting-version",
	ResolvingArchiveURL: "resolving-archive-url",
	DownloadingArchive:  "downloading-archive",
	Extracting:          "extracting",
	LoadingManifest:     "loading-manifest",
	BootstrappingLoader: "bootstrapping-loader",
	AcquiringFiles:      "acquiring-files",
	ApplyingOverrides:   "applying-overrides",
	Cleanup:             "cleanup",
	Done:                "done",
	Aborted:             "aborted",
}

func (s State) String() string {
	return stateNames[s]
}
