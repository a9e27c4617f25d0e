// package tasks implements the scheduled saved-tracks sync.
//
// [SyncJob] runs one pass over every stored identity. Per identity the pipeline is
// [TokenManager.EnsureFresh] → [Poller.Poll] → [Diff] → [Notifier.Notify], with the
// sync-progress write dispatched through [PendingWrites] and joined before the run ends.
// Failures are identity-scoped: they are logged and the batch continues.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks
