package support

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
	"github.com/tidwall/gjson"

	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

// RegisterSteps binds every step of the API suite.
func (tc *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the upload limit is (\d+) bytes$`, tc.theUploadLimitIs)
	sc.Step(`^no analysis credential is configured$`, tc.noAnalysisCredential)
	sc.Step(`^the analysis backend replies with "([^"]*)"$`, tc.analysisRepliesWith)
	sc.Step(`^the analysis backend is unavailable$`, tc.analysisUnavailable)
	sc.Step(`^the recognition engine is unavailable$`, tc.engineUnavailable)
	sc.Step(`^the recognition engine finds no text$`, tc.engineFindsNoText)

	sc.Step(`^I request "(GET|POST|PUT|DELETE)" "([^"]*)"$`, tc.iRequest)
	sc.Step(`^I upload a (\d+)x(\d+) "(png|jpeg)" image as "([^"]*)"$`, tc.iUploadImage)
	sc.Step(`^I upload a GIF image as "([^"]*)"$`, tc.iUploadGIF)
	sc.Step(`^I upload (\d+) bytes as "([^"]*)"$`, tc.iUploadBytes)
	sc.Step(`^I submit the form without an image$`, tc.iSubmitWithoutImage)

	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, tc.theJSONFieldShouldEqual)
	sc.Step(`^the JSON field "([^"]*)" should be (true|false)$`, tc.theJSONFieldShouldBeBool)
	sc.Step(`^the JSON field "([^"]*)" should be null$`, tc.theJSONFieldShouldBeNull)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) items?$`, tc.theJSONFieldShouldHaveItems)
	sc.Step(`^the response header "([^"]*)" should equal the JSON field "([^"]*)"$`, tc.theHeaderShouldEqualField)
	sc.Step(`^the response body should contain "([^"]*)"$`, tc.theBodyShouldContain)
	sc.Step(`^the recognition engine should have been called (\d+) times?$`, tc.engineCalls)
	sc.Step(`^the analysis backend should have been called (\d+) times?$`, tc.chatCalls)
}

func (tc *TestContext) theUploadLimitIs(n int64) error {
	tc.Config.Image.MaxUploadBytes = n
	return nil
}

func (tc *TestContext) noAnalysisCredential() error {
	tc.Config.Analysis.APIKey = ""
	return nil
}

func (tc *TestContext) analysisRepliesWith(content string) error {
	tc.Chat.Content.Store(content)
	return nil
}

func (tc *TestContext) analysisUnavailable() error {
	tc.Chat.Status.Store(http.StatusServiceUnavailable)
	return nil
}

func (tc *TestContext) engineUnavailable() error {
	tc.Engine.Status.Store(http.StatusInternalServerError)
	tc.Engine.Reply.Store(`{"errorCode":500,"errorMsg":"model crashed"}`)
	return nil
}

func (tc *TestContext) engineFindsNoText() error {
	tc.Engine.Reply.Store(`{"errorCode":0,"result":{"ocrResults":[{"prunedResult":{"rec_texts":[],"rec_scores":[],"rec_polys":[]}}]}}`)
	return nil
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastStatus = resp.StatusCode
	tc.LastBody = body
	tc.LastHeaders = resp.Header
	return nil
}

func (tc *TestContext) iRequest(method, path string) error {
	if err := tc.StartAPI(); err != nil {
		return err
	}
	req, err := http.NewRequest(method, tc.API.URL+path, nil) //nolint:noctx // test helper
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) upload(field, filename string, data []byte) error {
	if err := tc.StartAPI(); err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	} else if err := mw.WriteField("note", "no image"); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, tc.API.URL+"/analyze", &body) //nolint:noctx // test helper
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return tc.do(req)
}

func (tc *TestContext) iUploadImage(width, height int, format, filename string) error {
	img := testutil.BlankImage(width, height, color.White)
	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return err
	}
	return tc.upload("image", filename, buf.Bytes())
}

func (tc *TestContext) iUploadGIF(filename string) error {
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{color.White, color.Black})
	if err := gif.Encode(&buf, img, nil); err != nil {
		return err
	}
	return tc.upload("image", filename, buf.Bytes())
}

func (tc *TestContext) iUploadBytes(n int, filename string) error {
	return tc.upload("image", filename, bytes.Repeat([]byte{0xFF}, n))
}

func (tc *TestContext) iSubmitWithoutImage() error {
	return tc.upload("", "", nil)
}

func (tc *TestContext) theResponseStatusShouldBe(want int) error {
	if tc.LastStatus != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, tc.LastStatus, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) field(path string) (gjson.Result, error) {
	if !gjson.ValidBytes(tc.LastBody) {
		return gjson.Result{}, fmt.Errorf("response is not JSON: %s", tc.LastBody)
	}
	return gjson.GetBytes(tc.LastBody, path), nil
}

func (tc *TestContext) theJSONFieldShouldEqual(path, want string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}
	// Feature files spell newlines as \n.
	want = strings.ReplaceAll(want, `\n`, "\n")
	if !got.Exists() || got.String() != want {
		return fmt.Errorf("field %q: expected %q, got %q", path, want, got.String())
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldBeBool(path, want string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}
	if !got.IsBool() || strconv.FormatBool(got.Bool()) != want {
		return fmt.Errorf("field %q: expected %s, got %s", path, want, got.Raw)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldBeNull(path string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}
	if !got.Exists() || got.Type != gjson.Null {
		return fmt.Errorf("field %q: expected null, got %s", path, got.Raw)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldHaveItems(path string, n int) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}
	if !got.IsArray() || len(got.Array()) != n {
		return fmt.Errorf("field %q: expected %d items, got %s", path, n, got.Raw)
	}
	return nil
}

func (tc *TestContext) theHeaderShouldEqualField(header, path string) error {
	got, err := tc.field(path)
	if err != nil {
		return err
	}
	if h := tc.LastHeaders.Get(header); h == "" || h != got.String() {
		return fmt.Errorf("header %s=%q does not match field %q=%q", header, h, path, got.String())
	}
	return nil
}

func (tc *TestContext) theBodyShouldContain(s string) error {
	if !bytes.Contains(tc.LastBody, []byte(s)) {
		return fmt.Errorf("response body does not contain %q: %s", s, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) engineCalls(n int64) error {
	if got := tc.Engine.Calls.Load(); got != n {
		return fmt.Errorf("expected %d engine calls, got %d", n, got)
	}
	return nil
}

func (tc *TestContext) chatCalls(n int64) error {
	if got := tc.Chat.Calls.Load(); got != n {
		return fmt.Errorf("expected %d analysis calls, got %d", n, got)
	}
	return nil
}
