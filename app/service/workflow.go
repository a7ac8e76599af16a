package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils/clock"
	"track-forge/app/utils/downloader"
	"track-forge/app/utils/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 各阶段进度区间
const (
	progressValidating = 0
	progressSubmitted  = 15
	progressPolled     = 60
	progressUploaded   = 70
	progressMinted     = 95
	progressDone       = 100
)

// MusicGenerator 音乐生成接口
type MusicGenerator interface {
	Submit(ctx context.Context, req model.GenerationRequest) (*model.TaskHandle, error)
	PollStatus(ctx context.Context, taskID string) (*model.TaskStatusResult, error)
}

// ContentUploader 内容存储接口
type ContentUploader interface {
	Upload(ctx context.Context, name string, data []byte) (model.UploadResult, error)
	UploadJSON(ctx context.Context, name string, v any) (model.UploadResult, error)
	GatewayURL(contentID string) string
}

// MediaFetcher 拉取生成结果里的临时媒体地址
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (*downloader.FetchResult, error)
}

// RecordSink 只追加的结果日志
type RecordSink interface {
	SaveRecord(ctx context.Context, rec *model.TrackRecord) error
}

// TrackMinter 按钱包串行铸造
type TrackMinter interface {
	Mint(ctx context.Context, wallet string, meta model.MintMetadata) model.MintResult
}

// WorkflowDeps 工作流依赖
type WorkflowDeps struct {
	Generator MusicGenerator
	Uploader  ContentUploader
	Fetcher   MediaFetcher
	Minter    TrackMinter
	Records   RecordSink
	Limiter   *GenerationLimiter
	Artists   *ArtistRegistry
	Tracks    *TrackStore
	Runs      *RunRegistry
	Hub       *ProgressHub
	Clock     clock.Clock
	Logger    *logger.Logger
}

// WorkflowOptions 工作流参数
type WorkflowOptions struct {
	Poll        retry.Policy
	ArtworkSize int
	RoyaltyBps  int
}

// WorkflowController 串起 校验 -> 提交 -> 轮询 -> 上传 -> 铸造 -> 记录 的完整流水线
type WorkflowController struct {
	WorkflowDeps
	opts WorkflowOptions

	trackLocks *keyedMutex

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorkflowController 创建工作流控制器
func NewWorkflowController(deps WorkflowDeps, opts WorkflowOptions) *WorkflowController {
	if opts.Poll.MaxAttempts <= 0 {
		opts.Poll = retry.DefaultPollPolicy()
	}
	if opts.ArtworkSize <= 0 {
		opts.ArtworkSize = 1024
	}
	if opts.RoyaltyBps <= 0 {
		opts.RoyaltyBps = model.DefaultRoyaltyBps
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewProgressHub()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkflowController{
		WorkflowDeps: deps,
		opts:         opts,
		trackLocks:   newKeyedMutex(),
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

// RunHandle 后台运行的句柄
type RunHandle struct {
	RunID string

	done    chan struct{}
	summary *model.WorkflowSummary
	err     error
}

// Done 运行结束时关闭
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Result 返回运行结果，只应在 Done 关闭后调用
func (h *RunHandle) Result() (*model.WorkflowSummary, error) {
	return h.summary, h.err
}

// Wait 等待运行结束。ctx 取消只影响等待本身，流水线继续在后台执行
func (h *RunHandle) Wait(ctx context.Context) (*model.WorkflowSummary, error) {
	select {
	case <-h.done:
		return h.summary, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runState 单次运行的上下文
type runState struct {
	id          string
	owner       model.Owner
	req         model.GenerationRequest
	isArtist    bool
	reservation *Reservation
	progress    int
	log         *logger.Logger
}

// Run 同步执行完整流水线
func (c *WorkflowController) Run(ctx context.Context, owner model.Owner, req model.GenerationRequest) (*model.WorkflowSummary, error) {
	rs, err := c.prepare(ctx, owner, req)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, rs)
}

// Start 同步完成校验和额度预占后立即返回，其余步骤在后台执行。
// 后台运行不受调用方 ctx 影响，调用方离开后结果仍会落库。
func (c *WorkflowController) Start(owner model.Owner, req model.GenerationRequest) (*RunHandle, error) {
	rs, err := c.prepare(c.baseCtx, owner, req)
	if err != nil {
		return nil, err
	}

	h := &RunHandle{RunID: rs.id, done: make(chan struct{})}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				rs.log.Error("工作流异常退出", zap.Any("panic", r))
				h.err = fmt.Errorf("工作流异常退出: %v", r)
				// 提交成功后 Commit 过的预占不会被退回
				rs.reservation.Release(context.Background())
				c.fail(context.Background(), rs, h.err)
			}
		}()

		h.summary, h.err = c.execute(c.baseCtx, rs)
	}()
	return h, nil
}

// Shutdown 等待后台运行结束；ctx 到期时取消仍在执行的运行
func (c *WorkflowController) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// prepare 校验请求并预占额度，任何网络调用之前完成
func (c *WorkflowController) prepare(ctx context.Context, owner model.Owner, req model.GenerationRequest) (*runState, error) {
	owner.Wallet = model.NormalizeWallet(owner.Wallet)
	if owner.Wallet == "" {
		return nil, model.NewPipelineError(model.ErrValidation, "缺少钱包地址")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rs := &runState{
		id:       uuid.NewString(),
		owner:    owner,
		req:      req,
		isArtist: c.Artists.IsArtist(owner.Wallet, owner.IsArtist),
	}
	rs.log = c.Logger.With(zap.String("run_id", rs.id), zap.String("wallet", owner.Wallet))
	c.emit(ctx, rs, model.StateValidating, progressValidating, "校验请求")

	reservation, err := c.Limiter.Reserve(ctx, owner.Wallet, rs.isArtist)
	if err != nil {
		rs.log.Infof("额度不足，拒绝生成: %v", err)
		c.Hub.Forget(rs.id)
		return nil, err
	}
	rs.reservation = reservation

	run := &model.WorkflowRun{
		RunID:  rs.id,
		Owner:  owner.Wallet,
		Prompt: req.Prompt,
		State:  model.StateValidating,
	}
	if err := c.Runs.Create(ctx, run); err != nil {
		reservation.Release(ctx)
		c.Hub.Forget(rs.id)
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	return rs, nil
}

// execute 提交之后的全部步骤
func (c *WorkflowController) execute(ctx context.Context, rs *runState) (*model.WorkflowSummary, error) {
	rs.log.Infof("开始生成: model=%s, instrumental=%v", rs.req.ModelOrDefault(), rs.req.Instrumental)

	handle, err := c.Generator.Submit(ctx, rs.req)
	if err != nil {
		rs.reservation.Release(context.WithoutCancel(ctx))
		if !isPipelineError(err) {
			err = model.WrapPipelineError(model.ErrUpstream, "提交生成任务失败", err)
		}
		return nil, c.fail(ctx, rs, err)
	}
	rs.reservation.Commit(ctx, handle.TaskID)
	if err := c.Runs.SetTaskID(ctx, rs.id, handle.TaskID); err != nil {
		rs.log.Warnf("记录任务ID失败: %v", err)
	}
	c.emit(ctx, rs, model.StateSubmitted, progressSubmitted, "任务已提交: "+handle.TaskID)

	result, err := c.poll(ctx, rs, handle.TaskID)
	if err != nil {
		return nil, c.fail(ctx, rs, err)
	}
	c.emit(ctx, rs, model.StatePolling, progressPolled, fmt.Sprintf("生成完成，共 %d 首", len(result.Tracks)))

	tracks := c.uploadAll(ctx, rs, handle.TaskID, result.Tracks)
	c.mintAll(ctx, rs, tracks)
	c.recordAll(ctx, rs, tracks)

	summary := summarize(rs.id, handle.TaskID, tracks)
	// 关闭超时取消了 ctx 时结果仍要落库
	ctx = context.WithoutCancel(ctx)
	if err := c.Runs.Finish(ctx, rs.id, summary, nil); err != nil {
		rs.log.Warnf("保存运行结果失败: %v", err)
	}
	c.emit(ctx, rs, model.WorkflowState(summary.Outcome), progressDone,
		fmt.Sprintf("生成 %d，上传 %d，铸造 %d", summary.Generated, summary.Uploaded, summary.Minted))
	rs.log.Infof("工作流结束: outcome=%s, generated=%d, uploaded=%d, minted=%d",
		summary.Outcome, summary.Generated, summary.Uploaded, summary.Minted)
	return summary, nil
}

// poll 按重试策略轮询直到终态
func (c *WorkflowController) poll(ctx context.Context, rs *runState, taskID string) (*model.TaskStatusResult, error) {
	var final *model.TaskStatusResult
	attempts := c.opts.Poll.MaxAttempts

	step := func(ctx context.Context, attempt int) (bool, error) {
		c.emit(ctx, rs, model.StatePolling, band(progressSubmitted, progressPolled, attempt, attempts), "")

		res, err := c.Generator.PollStatus(ctx, taskID)
		if err != nil {
			return false, err
		}

		switch res.Status {
		case model.TaskSuccess:
			final = res
			return true, nil
		case model.TaskSensitiveWordError:
			return true, model.NewPipelineError(model.ErrSensitiveContent, upstreamMessage(res, "提示词包含敏感内容"))
		case model.TaskFailed:
			return true, model.NewPipelineError(model.ErrGenerationFailed, upstreamMessage(res, "生成失败"))
		}
		return false, nil
	}

	err := c.opts.Poll.Poll(ctx, c.Clock, step, func(attempt int, err error) {
		rs.log.Debugf("第 %d 次轮询出错，继续重试: %v", attempt+1, err)
	})
	switch {
	case errors.Is(err, retry.ErrExhausted):
		return nil, model.NewPipelineError(model.ErrGenerationTimeout, fmt.Sprintf("等待生成结果超时（%d 次轮询）", attempts))
	case err != nil && !isPipelineError(err):
		return nil, model.WrapPipelineError(model.ErrGenerationTimeout, "轮询被中断", err)
	case err != nil:
		return nil, err
	}

	if len(final.Tracks) == 0 {
		return nil, model.NewPipelineError(model.ErrGenerationFailed, "生成成功但没有返回曲目")
	}
	return final, nil
}

// recordAll 写入结果日志，失败只记日志
func (c *WorkflowController) recordAll(ctx context.Context, rs *runState, tracks []*model.GeneratedTrack) {
	c.emit(ctx, rs, model.StateRecording, progressMinted, "写入记录")
	for _, t := range tracks {
		c.record(ctx, rs.log, t, rs.req)
	}
}

func (c *WorkflowController) record(ctx context.Context, log *logger.Logger, t *model.GeneratedTrack, req model.GenerationRequest) {
	rec := &model.TrackRecord{
		Owner:    t.Owner,
		TaskID:   t.TaskID,
		RunID:    t.RunID,
		Title:    t.Title,
		AudioURL: t.AudioURL,
		ImageURL: t.ImageURL,
		Prompt:   req.Prompt,
		Style:    req.Style,
		Lyrics:   req.Lyrics,
		Status:   t.RecordStatus(),
		TokenID:  t.TokenID,
		TxHash:   t.TxHash,
	}
	if err := c.Records.SaveRecord(ctx, rec); err != nil {
		log.Warnf("写入记录失败，已忽略: title=%s, err=%v", t.Title, err)
	}
}

// fail 持久化失败结果并返回原错误
func (c *WorkflowController) fail(ctx context.Context, rs *runState, err error) error {
	rs.log.Warnf("工作流失败: kind=%s, err=%v", model.ErrorKindName(err), err)
	ctx = context.WithoutCancel(ctx)
	if ferr := c.Runs.Finish(ctx, rs.id, nil, err); ferr != nil {
		rs.log.Warnf("保存失败结果出错: %v", ferr)
	}
	c.emit(ctx, rs, model.StateError, progressDone, err.Error())
	return err
}

// emit 进度只增不减
func (c *WorkflowController) emit(ctx context.Context, rs *runState, state model.WorkflowState, progress int, msg string) {
	if progress < rs.progress {
		progress = rs.progress
	}
	rs.progress = progress

	c.Hub.Publish(model.ProgressEvent{RunID: rs.id, State: state, Progress: progress, Message: msg})
	if state == model.StateValidating {
		// 运行记录尚未创建
		return
	}
	if err := c.Runs.UpdateProgress(ctx, rs.id, state, progress); err != nil {
		rs.log.Debugf("更新进度失败: %v", err)
	}
}

// band 把 done/total 映射到 [lo, hi]
func band(lo, hi, done, total int) int {
	if total <= 0 {
		return hi
	}
	if done > total {
		done = total
	}
	return lo + (hi-lo)*done/total
}

func summarize(runID, taskID string, tracks []*model.GeneratedTrack) *model.WorkflowSummary {
	s := &model.WorkflowSummary{
		RunID:         runID,
		TaskID:        taskID,
		Generated:     len(tracks),
		FailedUploads: []string{},
		FailedMints:   []string{},
		Tracks:        tracks,
	}
	for _, t := range tracks {
		switch {
		case !t.HasContentID():
			s.FailedUploads = append(s.FailedUploads, t.Title)
		case t.Minted:
			s.Uploaded++
			s.Minted++
		default:
			s.Uploaded++
			s.FailedMints = append(s.FailedMints, t.Title)
		}
	}

	s.Outcome = model.OutcomeDone
	if len(s.FailedUploads) > 0 || len(s.FailedMints) > 0 {
		s.Outcome = model.OutcomePartial
	}
	return s
}

func upstreamMessage(res *model.TaskStatusResult, fallback string) string {
	if res.ErrorMessage != "" {
		return res.ErrorMessage
	}
	if res.RawStatus != "" {
		return fallback + ": " + res.RawStatus
	}
	return fallback
}

func isPipelineError(err error) bool {
	var pe *model.PipelineError
	return errors.As(err, &pe)
}
