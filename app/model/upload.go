package model

// UploadResult 单个媒体资源的内容存储结果
type UploadResult struct {
	ContentID  string `json:"content_id"`
	GatewayURL string `json:"gateway_url"`
}

// TrackMetadata 上传到内容存储的曲目元数据
type TrackMetadata struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Image        string           `json:"image"`
	AnimationURL string           `json:"animation_url"`
	Attributes   []TrackAttribute `json:"attributes"`
}

// TrackAttribute 元数据属性
type TrackAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}
