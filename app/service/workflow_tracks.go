package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils/artwork"

	"go.uber.org/zap"
)

// ErrTrackAlreadyMinted 曲目已铸造
var ErrTrackAlreadyMinted = errors.New("track already minted")

// uploadAll 逐首上传，单首失败不影响其它曲目
func (c *WorkflowController) uploadAll(ctx context.Context, rs *runState, taskID string, data []model.GeneratedTrackData) []*model.GeneratedTrack {
	tracks := make([]*model.GeneratedTrack, 0, len(data))
	artist := rs.owner.Name
	if artist == "" {
		artist = rs.owner.Wallet
	}

	c.emit(ctx, rs, model.StateUploading, progressPolled, "上传媒体")
	for i, d := range data {
		t := model.NewGeneratedTrack(rs.id, taskID, rs.owner.Wallet, artist, d)
		t.Title = artwork.NormalizeTitle(t.Title)
		if t.Title == "" {
			t.Title = fmt.Sprintf("Untitled %d", i+1)
		}
		t.Genre = firstTag(t.Tags)
		if t.Prompt == "" {
			t.Prompt = rs.req.Prompt
		}

		if err := c.uploadTrack(ctx, rs.log, t); err != nil {
			t.UploadFailed = true
			t.UploadError = err.Error()
			rs.log.Warnf("上传失败，保留原始地址: title=%s, err=%v", t.Title, err)
		}
		c.saveTrack(ctx, rs.log, t)
		tracks = append(tracks, t)

		c.emit(ctx, rs, model.StateUploading, band(progressPolled, progressUploaded, i+1, len(data)), "已上传: "+t.Title)
	}
	return tracks
}

// uploadTrack 音频上传失败即视为整首上传失败；封面和元数据失败只降级
func (c *WorkflowController) uploadTrack(ctx context.Context, log *logger.Logger, t *model.GeneratedTrack) error {
	if t.AudioURL == "" {
		return model.NewPipelineError(model.ErrUpload, "缺少音频地址")
	}

	audio, err := c.Fetcher.Fetch(ctx, t.AudioURL)
	if err != nil {
		return model.WrapPipelineError(model.ErrUpload, "拉取音频失败", err)
	}
	up, err := c.Uploader.Upload(ctx, mediaName(t, "mp3"), audio.Data)
	if err != nil {
		return model.WrapPipelineError(model.ErrUpload, "上传音频失败", err)
	}
	t.AudioCID = up.ContentID
	t.AudioURL = up.GatewayURL

	if cover, err := c.coverImage(ctx, log, t); err != nil {
		log.Warnf("准备封面失败，保留原始封面地址: title=%s, err=%v", t.Title, err)
	} else if up, err := c.Uploader.Upload(ctx, mediaName(t, cover.ext), cover.data); err != nil {
		log.Warnf("上传封面失败，保留原始封面地址: title=%s, err=%v", t.Title, err)
	} else {
		t.ImageCID = up.ContentID
		t.ImageURL = up.GatewayURL
	}

	meta := trackMetadata(t)
	if up, err := c.Uploader.UploadJSON(ctx, mediaName(t, "json"), meta); err != nil {
		log.Warnf("上传元数据失败: title=%s, err=%v", t.Title, err)
	} else {
		t.MetadataCID = up.ContentID
	}
	return nil
}

type coverArt struct {
	data []byte
	ext  string
}

// coverImage 有封面就裁成正方形，没有或拉取失败就生成占位图
func (c *WorkflowController) coverImage(ctx context.Context, log *logger.Logger, t *model.GeneratedTrack) (coverArt, error) {
	if t.ImageURL != "" {
		data, err := c.fetchCover(ctx, t.ImageURL)
		if err == nil {
			return coverArt{data: data, ext: "jpg"}, nil
		}
		log.Debugf("原始封面不可用，改用占位图: title=%s, err=%v", t.Title, err)
	}

	data, err := artwork.Placeholder(t.Title, c.opts.ArtworkSize)
	if err != nil {
		return coverArt{}, err
	}
	return coverArt{data: data, ext: "png"}, nil
}

func (c *WorkflowController) fetchCover(ctx context.Context, url string) ([]byte, error) {
	res, err := c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return artwork.Normalize(res.Data, c.opts.ArtworkSize)
}

func trackMetadata(t *model.GeneratedTrack) model.TrackMetadata {
	attrs := []model.TrackAttribute{
		{TraitType: "Artist", Value: t.Artist},
		{TraitType: "Duration", Value: t.Duration},
	}
	if t.Genre != "" {
		attrs = append(attrs, model.TrackAttribute{TraitType: "Genre", Value: t.Genre})
	}
	if t.ModelName != "" {
		attrs = append(attrs, model.TrackAttribute{TraitType: "Model", Value: t.ModelName})
	}
	return model.TrackMetadata{
		Name:         t.Title,
		Description:  t.Prompt,
		Image:        t.ImageURL,
		AnimationURL: t.AudioURL,
		Attributes:   attrs,
	}
}

// mintAll 只铸造拿到内容标识的曲目，按钱包串行
func (c *WorkflowController) mintAll(ctx context.Context, rs *runState, tracks []*model.GeneratedTrack) {
	var mintable []*model.GeneratedTrack
	for _, t := range tracks {
		if t.HasContentID() {
			mintable = append(mintable, t)
		}
	}

	c.emit(ctx, rs, model.StateMinting, progressUploaded, fmt.Sprintf("铸造 %d 首", len(mintable)))
	for i, t := range mintable {
		if err := c.mintTrack(ctx, rs.log, rs.owner.Wallet, t); err != nil {
			rs.log.Warnf("铸造失败，继续下一首: title=%s, err=%v", t.Title, err)
		}
		c.emit(ctx, rs, model.StateMinting, band(progressUploaded, progressMinted, i+1, len(mintable)), "已处理: "+t.Title)
	}
	if len(mintable) == 0 {
		c.emit(ctx, rs, model.StateMinting, progressMinted, "没有可铸造的曲目")
	}
}

// mintTrack 铸造单首曲目。同一曲目加锁并以库中状态为准，已铸造的不会再次提交
func (c *WorkflowController) mintTrack(ctx context.Context, log *logger.Logger, wallet string, t *model.GeneratedTrack) error {
	if t.ID != 0 {
		unlock := c.trackLocks.Lock(strconv.FormatUint(uint64(t.ID), 10))
		defer unlock()

		if stored, err := c.Tracks.Get(ctx, t.ID); err == nil && stored.Minted {
			*t = *stored
		}
	}
	if t.Minted {
		return ErrTrackAlreadyMinted
	}
	if !t.HasContentID() {
		return model.NewPipelineError(model.ErrMint, "曲目没有内容标识，无法铸造")
	}

	res := c.Minter.Mint(ctx, wallet, c.mintMetadata(wallet, t))
	if !res.Success {
		t.MintError = res.Error
		c.saveTrack(ctx, log, t)
		return model.NewPipelineError(model.ErrMint, res.Error)
	}
	if err := t.MarkMinted(res.TokenID, res.TxHash, c.Clock.Now()); err != nil {
		t.MintError = err.Error()
		c.saveTrack(ctx, log, t)
		return model.WrapPipelineError(model.ErrMint, "铸造结果无效", err)
	}
	c.saveTrack(ctx, log, t)
	return nil
}

func (c *WorkflowController) mintMetadata(wallet string, t *model.GeneratedTrack) model.MintMetadata {
	meta := model.MintMetadata{
		To:               wallet,
		Title:            t.Title,
		Artist:           t.Artist,
		Genre:            t.Genre,
		Duration:         t.Duration,
		AudioContentID:   t.AudioCID,
		ArtworkContentID: t.ImageCID,
		RoyaltyBps:       c.opts.RoyaltyBps,
		IsExplicit:       t.Explicit,
		SourceID:         t.SourceID,
		TaskID:           t.TaskID,
	}
	if t.MetadataCID != "" {
		meta.MetadataURI = c.Uploader.GatewayURL(t.MetadataCID)
	}
	return meta
}

// RetryMint 手动重试铸造一首未铸造的曲目
func (c *WorkflowController) RetryMint(ctx context.Context, owner model.Owner, trackID uint) (*model.GeneratedTrack, error) {
	wallet := model.NormalizeWallet(owner.Wallet)

	t, err := c.Tracks.Get(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if t.Owner != wallet {
		return nil, ErrTrackNotFound
	}

	log := c.Logger.With(zap.Uint("track_id", trackID), zap.String("wallet", wallet))
	if err := c.mintTrack(ctx, log, wallet, t); err != nil {
		return t, err
	}

	log.Infof("手动铸造成功: track=%d, tokenId=%s", t.ID, t.TokenID)
	c.record(ctx, log, t, model.GenerationRequest{Prompt: t.Prompt})
	return t, nil
}

// saveTrack 曲目持久化失败只记日志，结果仍返回给调用方
func (c *WorkflowController) saveTrack(ctx context.Context, log *logger.Logger, t *model.GeneratedTrack) {
	if err := c.Tracks.Save(ctx, t); err != nil {
		log.Warnf("保存曲目失败: title=%s, err=%v", t.Title, err)
	}
}

func mediaName(t *model.GeneratedTrack, ext string) string {
	base := t.SourceID
	if base == "" {
		base = strings.ReplaceAll(strings.ToLower(t.Title), " ", "-")
	}
	return base + "." + ext
}

func firstTag(tags string) string {
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			return tag
		}
	}
	return ""
}
