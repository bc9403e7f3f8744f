// Package comfy talks to a ComfyUI workflow backend: it builds job graphs
// from typed parameters, submits them, and reads back job history and
// generated artifacts.
package comfy

import (
	"math/rand"
)

// Node is one step in a job graph. Inputs either hold literal values or
// [nodeID, outputIndex] references to other nodes.
type Node struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
}

// Workflow is a complete job graph keyed by node id.
type Workflow map[string]Node

// Params is the typed parameter set a caller supplies; the graph builders
// translate it into backend node wiring. InputImage is the backend-assigned
// name of a previously uploaded image.
type Params struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Sampler        string
	Seed           int
	InputImage     string
}

const sdxlCheckpoint = "sd_xl_base_1.0.safetensors"

// Fixed negative conditioning for the video pipeline (quality and artifact
// suppression terms the model was tuned against).
const videoNegativePrompt = "色调艳丽，过曝，静态，细节模糊不清，字幕，风格，作品，画作，画面，静止，整体发灰，最差质量，低质量，JPEG压缩残留，丑陋的，残缺的，多余的手指，画得不好的手部，画得不好的脸部，畸形的，毁容的，形态畸形的肢体，手指融合，静止不动的画面，杂乱的背景，三条腿，背景人很多，倒着走"

// TextToImageWorkflow builds an SDXL text-conditioned image graph.
// It is a pure function of its parameters apart from seed defaulting.
func TextToImageWorkflow(p Params) Workflow {
	seed := p.Seed
	if seed == 0 {
		seed = rand.Intn(1000000)
	}
	steps := p.Steps
	if steps == 0 {
		steps = 20
	}
	cfg := p.CFGScale
	if cfg == 0 {
		cfg = 7.0
	}
	sampler := p.Sampler
	if sampler == "" {
		sampler = "euler"
	}
	width := p.Width
	if width == 0 {
		width = 512
	}
	height := p.Height
	if height == 0 {
		height = 512
	}

	return Workflow{
		"1": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]any{
				"text": p.Prompt,
				"clip": []any{"11", 1},
			},
		},
		"2": {
			ClassType: "CLIPTextEncode",
			Inputs: map[string]any{
				"text": p.NegativePrompt,
				"clip": []any{"11", 1},
			},
		},
		"3": {
			ClassType: "KSampler",
			Inputs: map[string]any{
				"seed":         seed,
				"steps":        steps,
				"cfg":          cfg,
				"sampler_name": sampler,
				"scheduler":    "normal",
				"denoise":      1.0,
				"model":        []any{"10", 0},
				"positive":     []any{"1", 0},
				"negative":     []any{"2", 0},
				"latent_image": []any{"4", 0},
			},
		},
		"4": {
			ClassType: "EmptyLatentImage",
			Inputs: map[string]any{
				"width":      width,
				"height":     height,
				"batch_size": 1,
			},
		},
		"8": {
			ClassType: "VAEDecode",
			Inputs: map[string]any{
				"samples": []any{"3", 0},
				"vae":     []any{"10", 2},
			},
		},
		"9": {
			ClassType: "SaveImage",
			Inputs: map[string]any{
				"filename_prefix": "ComfyUI",
				"images":          []any{"8", 0},
			},
		},
		"10": {
			ClassType: "CheckpointLoaderSimple",
			Inputs:    map[string]any{"ckpt_name": sdxlCheckpoint},
		},
		"11": {
			ClassType: "CheckpointLoaderSimple",
			Inputs:    map[string]any{"ckpt_name": sdxlCheckpoint},
		},
	}
}

// ImageToVideoWorkflow builds the FusionX image-conditioned video graph.
// The input image feeds LoadImage (node 29) and the user prompt feeds the
// text node (node 33); the video artifact is produced by VHS_VideoCombine
// (node 31).
func ImageToVideoWorkflow(p Params) Workflow {
	seed := p.Seed
	if seed == 0 {
		seed = rand.Intn(1000000)
	}

	return Workflow{
		"7": {
			ClassType: "WanVideoVAELoader",
			Inputs: map[string]any{
				"model_name": "wan_2.1_vae.safetensors",
				"precision":  "bf16",
			},
		},
		"9": {
			ClassType: "LoadWanVideoT5TextEncoder",
			Inputs: map[string]any{
				"model_name":   "umt5_xxl_fp16.safetensors",
				"precision":    "bf16",
				"load_device":  "offload_device",
				"quantization": "disabled",
			},
		},
		"15": {
			ClassType: "WanVideoModelLoader",
			Inputs: map[string]any{
				"model":          "Wan14Bi2vFusioniX_fp16.safetensors",
				"base_precision": "fp16",
				"quantization":   "fp8_e4m3fn",
				"load_device":    "offload_device",
				"attention_mode": "sageattn",
			},
		},
		// Clip duration in seconds; node 24 converts it to a frame count.
		"18": {
			ClassType: "JWInteger",
			Inputs:    map[string]any{"value": 5},
		},
		"19": {
			ClassType: "WanVideoDecode",
			Inputs: map[string]any{
				"enable_vae_tiling": true,
				"tile_x":            272,
				"tile_y":            272,
				"tile_stride_x":     144,
				"tile_stride_y":     128,
				"normalization":     "default",
				"vae":               []any{"7", 0},
				"samples":           []any{"28", 0},
			},
		},
		"21": {
			ClassType: "LayerUtility: ImageScaleByAspectRatio V2",
			Inputs: map[string]any{
				"aspect_ratio":        "original",
				"proportional_width":  1,
				"proportional_height": 1,
				"fit":                 "letterbox",
				"method":              "lanczos",
				"round_to_multiple":   "16",
				"scale_to_side":       "longest",
				"scale_to_length":     []any{"25", 0},
				"background_color":    "#000000",
				"image":               []any{"29", 0},
			},
		},
		"24": {
			ClassType: "MathExpression|pysssss",
			Inputs: map[string]any{
				"expression": "a*16+1",
				"a":          []any{"18", 0},
			},
		},
		"25": {
			ClassType: "JWInteger",
			Inputs:    map[string]any{"value": 834},
		},
		"27": {
			ClassType: "ImpactSwitch",
			Inputs: map[string]any{
				"select":   1,
				"sel_mode": false,
				"input1":   []any{"33", 0},
				"input2":   []any{"33", 0},
			},
		},
		"28": {
			ClassType: "WanVideoSampler",
			Inputs: map[string]any{
				"steps":             8,
				"cfg":               1.0,
				"shift":             5.0,
				"seed":              seed,
				"force_offload":     true,
				"scheduler":         "unipc",
				"riflex_freq_index": 0,
				"denoise_strength":  1,
				"batched_cfg":       false,
				"rope_function":     "comfy",
				"model":             []any{"15", 0},
				"image_embeds":      []any{"39", 0},
				"text_embeds":       []any{"38", 0},
			},
		},
		"29": {
			ClassType: "LoadImage",
			Inputs:    map[string]any{"image": p.InputImage},
		},
		"31": {
			ClassType: "VHS_VideoCombine",
			Inputs: map[string]any{
				"frame_rate":      16,
				"loop_count":      0,
				"filename_prefix": "FusionX_Video",
				"format":          "video/h264-mp4",
				"pix_fmt":         "yuv420p",
				"crf":             19,
				"save_metadata":   true,
				"trim_to_audio":   false,
				"pingpong":        false,
				"save_output":     true,
				"images":          []any{"19", 0},
			},
		},
		"33": {
			ClassType: "CR Text",
			Inputs:    map[string]any{"text": p.Prompt},
		},
		"35": {
			ClassType: "WanVideoTextEncodeSingle",
			Inputs: map[string]any{
				"prompt":           videoNegativePrompt,
				"force_offload":    true,
				"t5":               []any{"9", 0},
				"model_to_offload": []any{"15", 0},
			},
		},
		"36": {
			ClassType: "WanVideoTextEncodeSingle",
			Inputs: map[string]any{
				"prompt":           []any{"27", 0},
				"force_offload":    true,
				"t5":               []any{"9", 0},
				"model_to_offload": []any{"15", 0},
			},
		},
		"38": {
			ClassType: "WanVideoApplyNAG",
			Inputs: map[string]any{
				"nag_scale":            11,
				"nag_tau":              2.5,
				"nag_alpha":            0.25,
				"original_text_embeds": []any{"36", 0},
				"nag_text_embeds":      []any{"35", 0},
			},
		},
		"39": {
			ClassType: "WanVideoImageToVideoEncode",
			Inputs: map[string]any{
				"width":                 []any{"21", 3},
				"height":                []any{"21", 4},
				"num_frames":            []any{"24", 0},
				"noise_aug_strength":    0.03,
				"start_latent_strength": 1,
				"end_latent_strength":   1,
				"force_offload":         true,
				"fun_or_fl2v_model":     false,
				"tiled_vae":             false,
				"vae":                   []any{"7", 0},
				"start_image":           []any{"21", 0},
			},
		},
	}
}
